package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// CreateWidget inserts w, assigning its id and timestamps.
func CreateWidget(ctx context.Context, db *gorm.DB, w *domain.WidgetConfig) error {
	now := time.Now().UTC()
	w.ID = uuid.NewString()
	w.CreatedAt = now
	w.UpdatedAt = now
	return db.WithContext(ctx).Create(w).Error
}

// GetWidget fetches a widget by id regardless of owner.
func GetWidget(ctx context.Context, db *gorm.DB, id string) (*domain.WidgetConfig, error) {
	var w domain.WidgetConfig
	if err := db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOwnedWidget fetches a widget by id and owner, or ErrNotFound.
func GetOwnedWidget(ctx context.Context, db *gorm.DB, id, userID string) (*domain.WidgetConfig, error) {
	var w domain.WidgetConfig
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWidget writes every column of w, including zero values and nil
// optional fields. The row must already exist and belong to w.UserID.
func SaveWidget(ctx context.Context, db *gorm.DB, w *domain.WidgetConfig) error {
	w.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.WidgetConfig{}).
		Where("id = ? AND user_id = ?", w.ID, w.UserID).
		Select("*").
		Omit("id", "user_id", "created_at", clause.Associations).
		Updates(w)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

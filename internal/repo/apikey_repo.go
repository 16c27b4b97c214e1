package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// UpsertAPIKey stores key as userID's OpenAI key, replacing any previous one.
func UpsertAPIKey(ctx context.Context, db *gorm.DB, userID, key string) (*domain.APIKey, error) {
	now := time.Now().UTC()
	k := &domain.APIKey{UserID: userID, Key: key, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"key", "updated_at"}),
	}).Create(k).Error
	if err != nil {
		return nil, err
	}
	return k, nil
}

// GetAPIKey returns userID's stored key, or ErrNotFound.
func GetAPIKey(ctx context.Context, db *gorm.DB, userID string) (*domain.APIKey, error) {
	var k domain.APIKey
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&k).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// CreateConversation inserts a new Conversation for botID. widgetID may be
// nil for conversations started outside a widget.
func CreateConversation(ctx context.Context, db *gorm.DB, botID string, widgetID *string, visitorID, title string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		BotID:     botID,
		WidgetID:  widgetID,
		VisitorID: visitorID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation by id within botID, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id, botID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND bot_id = ?", id, botID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountConversations returns the number of conversations held by botID.
func CountConversations(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("bot_id = ?", botID).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of botID's conversations, most
// recently updated first.
func ListConversationsPage(ctx context.Context, db *gorm.DB, botID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("updated_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TouchConversation bumps UpdatedAt after a turn is appended.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

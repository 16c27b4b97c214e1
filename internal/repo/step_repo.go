package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// UpsertStep writes the content of one prompt step, replacing any existing
// row for the same (bot_id, step).
func UpsertStep(ctx context.Context, db *gorm.DB, botID string, step int, content string) (*domain.PromptStep, error) {
	now := time.Now().UTC()
	s := &domain.PromptStep{
		ID:        uuid.NewString(),
		BotID:     botID,
		Step:      step,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_id"}, {Name: "step"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return nil, err
	}
	// On conflict the generated id was discarded; reload the stored row.
	var got domain.PromptStep
	if err := db.WithContext(ctx).Where("bot_id = ? AND step = ?", botID, step).First(&got).Error; err != nil {
		return nil, err
	}
	return &got, nil
}

// ListSteps returns the bot's steps ordered by step number.
func ListSteps(ctx context.Context, db *gorm.DB, botID string) ([]domain.PromptStep, error) {
	var out []domain.PromptStep
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("step asc").
		Find(&out).Error
	return out, err
}

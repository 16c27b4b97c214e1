package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// CreateSuggestedPrompt inserts a canned question for a bot.
func CreateSuggestedPrompt(ctx context.Context, db *gorm.DB, p *domain.SuggestedPrompt) error {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(p).Error
}

// ListSuggestedPrompts returns a bot's suggested prompts, oldest first.
func ListSuggestedPrompts(ctx context.Context, db *gorm.DB, botID string) ([]domain.SuggestedPrompt, error) {
	var out []domain.SuggestedPrompt
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// FindFixedResponse returns the fixed response of the suggested prompt whose
// question equals the trimmed input exactly. Prompts without a non-blank
// fixed response never match. ok is false when nothing matches.
func FindFixedResponse(ctx context.Context, db *gorm.DB, botID, question string) (resp string, ok bool, err error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", false, nil
	}
	var rows []domain.SuggestedPrompt
	err = db.WithContext(ctx).
		Where("bot_id = ? AND fixed_response IS NOT NULL", botID).
		Order("created_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, r := range rows {
		if strings.TrimSpace(r.Question) != q || r.FixedResponse == nil {
			continue
		}
		if fr := strings.TrimSpace(*r.FixedResponse); fr != "" {
			return fr, true, nil
		}
	}
	return "", false, nil
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
//
// Error semantics:
//   - A second rating for the same message violates ux_feedback_message and
//     is returned as ErrDuplicate.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// CreateFeedback inserts a rating for messageID in conversationID.
//
// Value must be -1 (negative) or 1 (positive); the CHECK constraint rejects
// anything else, but callers are expected to validate first.
func CreateFeedback(ctx context.Context, db *gorm.DB, messageID, conversationID string, value int) (*domain.Feedback, error) {
	now := time.Now().UTC()
	fb := &domain.Feedback{
		ID:             uuid.NewString(),
		MessageID:      messageID,
		ConversationID: conversationID,
		Value:          value,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return fb, nil
}

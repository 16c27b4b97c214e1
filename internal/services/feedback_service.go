// Package services – FeedbackService
//
// This file implements the FeedbackService, which records a visitor's rating
// (-1 or +1) of an assistant reply. Visitors are anonymous, so the rating is
// scoped by conversation: the message must belong to the conversation the
// caller names. Service-level errors (ErrInvalidFeedback, ErrMessageNotFound,
// ErrForbiddenFeedback, ErrDuplicateFeedback) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/repo"
)

// FeedbackService implements the use-cases around message feedback.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB *gorm.DB
}

// Leave records value for messageID inside conversationID.
//
// Semantics and validation:
//   - value must be exactly -1 or 1; otherwise ErrInvalidFeedback.
//   - messageID must exist in conversationID; otherwise ErrMessageNotFound.
//   - Only assistant messages can be rated; otherwise ErrForbiddenFeedback.
//   - A message can be rated once; a second rating yields ErrDuplicateFeedback.
//
// The checks and the insert run in one transaction.
func (s *FeedbackService) Leave(ctx context.Context, conversationID, messageID string, value int) (*domain.Feedback, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("message.id", messageID),
			attribute.Int("value", value),
		),
	)
	defer span.End()

	if value != -1 && value != 1 {
		return nil, ErrInvalidFeedback
	}

	var out *domain.Feedback
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := repo.GetMessage(ctx, tx, messageID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		if msg.ConversationID != conversationID {
			return ErrMessageNotFound
		}
		if msg.Role != domain.RoleAssistant {
			return ErrForbiddenFeedback
		}

		fb, err := repo.CreateFeedback(ctx, tx, messageID, conversationID, value)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateFeedback
			}
			return err
		}
		out = fb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

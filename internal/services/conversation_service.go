// Package services – ConversationService
//
// Read-side access to the conversations and messages a bot has accumulated,
// for the dashboard. Writes happen only through ChatService.Turn.
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
	"github.com/tbourn/go-bot-builder/internal/utils"
)

// ConversationService lists conversations and their messages.
type ConversationService struct {
	DB *gorm.DB
}

// ListPage returns a page of the bot's conversations, most recent first.
func (s *ConversationService) ListPage(ctx context.Context, userID, botID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if err := s.checkBot(ctx, userID, botID); err != nil {
		return nil, 0, err
	}
	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountConversations(ctx, s.DB, botID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := repo.ListConversationsPage(ctx, s.DB, botID, offset, limit)
	return items, total, err
}

// MessagesPage returns a page of a conversation's messages in turn order.
func (s *ConversationService) MessagesPage(ctx context.Context, userID, botID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "MessagesPage",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if err := s.checkBot(ctx, userID, botID); err != nil {
		return nil, 0, err
	}
	if _, err := repo.GetConversation(ctx, s.DB, conversationID, botID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}
	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, offset, limit)
	return items, total, err
}

func (s *ConversationService) checkBot(ctx context.Context, userID, botID string) error {
	if _, err := repo.GetOwnedBot(ctx, s.DB, botID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBotNotFound
		}
		return err
	}
	return nil
}

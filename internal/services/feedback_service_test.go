package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/repo"
)

func seedTurn(t *testing.T, db *gorm.DB) (conv *domain.Conversation, user, assistant *domain.Message) {
	t.Helper()
	ctx := context.Background()
	b := seedBot(t, db, "u1", nil)
	conv, err := repo.CreateConversation(ctx, db, b.ID, nil, "", "T")
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	now := time.Now().UTC()
	user, err = repo.CreateMessage(ctx, db, conv.ID, domain.RoleUser, "hi", domain.SourceUser, now)
	if err != nil {
		t.Fatalf("seed user msg: %v", err)
	}
	assistant, err = repo.CreateMessage(ctx, db, conv.ID, domain.RoleAssistant, "hello", domain.SourceLLM, now.Add(time.Millisecond))
	if err != nil {
		t.Fatalf("seed assistant msg: %v", err)
	}
	return conv, user, assistant
}

func TestFeedback_Leave_InvalidValue(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t)}
	if _, err := svc.Leave(context.Background(), "c1", "m1", 0); !errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("expected ErrInvalidFeedback, got %v", err)
	}
}

func TestFeedback_Leave_MessageNotFound(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t)}
	if _, err := svc.Leave(context.Background(), "c1", "missing", 1); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestFeedback_Leave_WrongConversation(t *testing.T) {
	db := newTestDB(t)
	_, _, assistant := seedTurn(t, db)

	svc := &FeedbackService{DB: db}
	if _, err := svc.Leave(context.Background(), "other-conv", assistant.ID, 1); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestFeedback_Leave_NotAssistantRole(t *testing.T) {
	db := newTestDB(t)
	conv, user, _ := seedTurn(t, db)

	svc := &FeedbackService{DB: db}
	if _, err := svc.Leave(context.Background(), conv.ID, user.ID, -1); !errors.Is(err, ErrForbiddenFeedback) {
		t.Fatalf("expected ErrForbiddenFeedback, got %v", err)
	}
}

func TestFeedback_Leave_SuccessThenDuplicate(t *testing.T) {
	db := newTestDB(t)
	conv, _, assistant := seedTurn(t, db)
	svc := &FeedbackService{DB: db}

	fb, err := svc.Leave(context.Background(), conv.ID, assistant.ID, -1)
	if err != nil {
		t.Fatalf("first Leave: %v", err)
	}
	if fb.Value != -1 || fb.MessageID != assistant.ID || fb.ConversationID != conv.ID {
		t.Fatalf("feedback=%+v", fb)
	}

	if _, err := svc.Leave(context.Background(), conv.ID, assistant.ID, 1); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("expected ErrDuplicateFeedback, got %v", err)
	}

	var count int64
	db.Model(&domain.Feedback{}).Where("message_id = ?", assistant.ID).Count(&count)
	if count != 1 {
		t.Fatalf("feedback rows=%d", count)
	}
}

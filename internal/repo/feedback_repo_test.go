package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

func TestCreateFeedback_Error_NoTable(t *testing.T) {
	db := newEmptyDB(t)
	if _, err := CreateFeedback(context.Background(), db, "m1", "c1", 1); err == nil {
		t.Fatalf("expected error without table")
	}
}

func TestCreateFeedback_SuccessAndDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedBot(t, db, "b1", "u1")
	seedConversation(t, db, "c1", "b1")
	m, err := CreateMessage(ctx, db, "c1", domain.RoleAssistant, "hi", domain.SourceLLM, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	fb, err := CreateFeedback(ctx, db, m.ID, "c1", 1)
	if err != nil || fb.Value != 1 {
		t.Fatalf("CreateFeedback = %+v, %v", fb, err)
	}
	if _, err := CreateFeedback(ctx, db, m.ID, "c1", -1); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second rating err = %v; want ErrDuplicate", err)
	}
}

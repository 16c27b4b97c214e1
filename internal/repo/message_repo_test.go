package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newEmptyDB(t)
	if _, err := CountMessages(context.Background(), db, "c1"); err == nil {
		t.Fatalf("expected error from raw COUNT without table")
	}
}

func TestMessages_CreateListCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedBot(t, db, "b1", "u1")
	seedConversation(t, db, "c1", "b1")

	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	turns := []struct{ role, content, source string }{
		{domain.RoleUser, "hi", domain.SourceUser},
		{domain.RoleAssistant, "hello", domain.SourceLLM},
		{domain.RoleUser, "hours?", domain.SourceUser},
		{domain.RoleAssistant, "9-5", domain.SourceFixed},
	}
	var ids []string
	for i, tr := range turns {
		m, err := CreateMessage(ctx, db, "c1", tr.role, tr.content, tr.source, t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		ids = append(ids, m.ID)
	}

	all, err := ListMessages(ctx, db, "c1", 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("ListMessages = %d, %v", len(all), err)
	}
	for i := range all {
		if all[i].ID != ids[i] {
			t.Fatalf("order mismatch at %d", i)
		}
	}
	if all[3].Source != domain.SourceFixed {
		t.Fatalf("source not persisted: %+v", all[3])
	}

	limited, _ := ListMessages(ctx, db, "c1", 2)
	if len(limited) != 2 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
	page, _ := ListMessagesPage(ctx, db, "c1", 2, 10)
	if len(page) != 2 || page[0].Content != "hours?" {
		t.Fatalf("unexpected page: %+v", page)
	}

	total, err := CountMessages(ctx, db, "c1")
	if err != nil || total != 4 {
		t.Fatalf("CountMessages = %d, %v", total, err)
	}
	users, err := CountUserMessages(ctx, db, "c1")
	if err != nil || users != 2 {
		t.Fatalf("CountUserMessages = %d, %v", users, err)
	}

	got, err := GetMessage(ctx, db, ids[1])
	if err != nil || got.Content != "hello" {
		t.Fatalf("GetMessage = %+v, %v", got, err)
	}
	if _, err := GetMessage(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMessage missing err = %v", err)
	}
}

package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

func TestCreateBot_Error_NoTable(t *testing.T) {
	db := newEmptyDB(t)
	if err := CreateBot(context.Background(), db, &domain.Bot{UserID: "u1", Name: "x"}); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateBot_GetBot_GetOwnedBot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := &domain.Bot{UserID: "u1", Name: "Support", Language: "en"}
	if err := CreateBot(ctx, db, b); err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if b.ID == "" || b.CreatedAt.IsZero() {
		t.Fatalf("id/timestamps not assigned: %+v", b)
	}

	got, err := GetBot(ctx, db, b.ID)
	if err != nil || got.Name != "Support" {
		t.Fatalf("GetBot = %+v, %v", got, err)
	}
	if _, err := GetOwnedBot(ctx, db, b.ID, "u1"); err != nil {
		t.Fatalf("GetOwnedBot owner: %v", err)
	}
	if _, err := GetOwnedBot(ctx, db, b.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOwnedBot other user err = %v; want ErrNotFound", err)
	}
	if _, err := GetBot(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBot missing err = %v; want ErrNotFound", err)
	}
}

func TestListBotsPage_OrderAndFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"b1", "b2", "b3"} {
		at := t1.Add(time.Duration(i) * time.Hour)
		if err := db.Create(&domain.Bot{ID: id, UserID: "u1", Name: id, CreatedAt: at, UpdatedAt: at}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seedBot(t, db, "other", "u2")

	total, err := CountBots(ctx, db, "u1")
	if err != nil || total != 3 {
		t.Fatalf("CountBots = %d, %v; want 3", total, err)
	}
	page, err := ListBotsPage(ctx, db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListBotsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b3" || page[1].ID != "b2" {
		t.Fatalf("unexpected page: %+v", page)
	}
	page, _ = ListBotsPage(ctx, db, "u1", 2, 2)
	if len(page) != 1 || page[0].ID != "b1" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestTouchBot_BumpsUpdatedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := db.Create(&domain.Bot{ID: "b1", UserID: "u1", Name: "n", CreatedAt: old, UpdatedAt: old}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := TouchBot(ctx, db, "b1"); err != nil {
		t.Fatalf("TouchBot: %v", err)
	}
	got, _ := GetBot(ctx, db, "b1")
	if !got.UpdatedAt.After(old) {
		t.Fatalf("UpdatedAt not bumped: %v", got.UpdatedAt)
	}
}

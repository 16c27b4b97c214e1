package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

func TestWidget_CreateGetSave(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedBot(t, db, "b1", "u1")

	w := &domain.WidgetConfig{
		BotID: "b1", UserID: "u1", Title: "Help", WelcomeMessage: "Hi!",
		Color: strptr("#000000"), MessageLimit: -1, IsActive: true,
	}
	if err := CreateWidget(ctx, db, w); err != nil {
		t.Fatalf("CreateWidget: %v", err)
	}
	got, err := GetWidget(ctx, db, w.ID)
	if err != nil || got.Title != "Help" || got.Color == nil || *got.Color != "#000000" || !got.IsActive {
		t.Fatalf("GetWidget = %+v, %v", got, err)
	}
	if _, err := GetOwnedWidget(ctx, db, w.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOwnedWidget other user err = %v", err)
	}

	// Save clears the optional color and deactivates (zero values persist).
	got.Color = nil
	got.IsActive = false
	got.MessageLimit = 0
	if err := SaveWidget(ctx, db, got); err != nil {
		t.Fatalf("SaveWidget: %v", err)
	}
	again, _ := GetWidget(ctx, db, w.ID)
	if again.Color != nil || again.IsActive || again.MessageLimit != 0 {
		t.Fatalf("zero values not persisted: %+v", again)
	}

	got.UserID = "u2"
	if err := SaveWidget(ctx, db, got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SaveWidget wrong owner err = %v; want ErrNotFound", err)
	}
}

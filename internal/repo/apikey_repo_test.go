package repo

import (
	"context"
	"errors"
	"testing"
)

func TestAPIKey_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetAPIKey(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key err = %v; want ErrNotFound", err)
	}
	if _, err := UpsertAPIKey(ctx, db, "u1", "sk-first-000000"); err != nil {
		t.Fatalf("UpsertAPIKey: %v", err)
	}
	if _, err := UpsertAPIKey(ctx, db, "u1", "sk-second-11111"); err != nil {
		t.Fatalf("UpsertAPIKey replace: %v", err)
	}
	k, err := GetAPIKey(ctx, db, "u1")
	if err != nil || k.Key != "sk-second-11111" {
		t.Fatalf("GetAPIKey = %+v, %v", k, err)
	}
}

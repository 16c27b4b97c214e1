package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_Migration_Indexes_AndInsert(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Idempotency{}) {
		t.Fatalf("expected table %q to exist", Idempotency{}.TableName())
	}
	if !m.HasIndex(&Idempotency{}, "ux_bot_scope_key") {
		t.Fatalf("expected composite index ux_bot_scope_key to exist")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:             "id-1",
		BotID:          "b1",
		Key:            "k1",
		RequestHash:    "h1",
		ConversationID: "c1",
		MessageID:      "m1",
		Status:         200,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.BotID != "b1" || got.Key != "k1" || got.ConversationID != "c1" || got.MessageID != "m1" || got.Status != 200 {
		t.Fatalf("unexpected row: %+v", got)
	}

	// (bot_id, scope, key) must be unique.
	dup := &Idempotency{
		ID: "id-2", BotID: "b1", Key: "k1", RequestHash: "h2", ConversationID: "c2", MessageID: "m2",
		Status: 200, CreatedAt: now, ExpiresAt: now.Add(2 * time.Hour),
	}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE constraint violation on (bot_id, scope, key)")
	}

	// Same key under another bot or another conversation is fine.
	other := &Idempotency{
		ID: "id-3", BotID: "b2", Key: "k1", RequestHash: "h3", ConversationID: "c3", MessageID: "m3",
		Status: 200, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other bot: %v", err)
	}
	scoped := &Idempotency{
		ID: "id-4", BotID: "b1", Scope: "c1", Key: "k1", RequestHash: "h4", ConversationID: "c1", MessageID: "m4",
		Status: 200, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(scoped).Error; err != nil {
		t.Fatalf("insert other scope: %v", err)
	}
}

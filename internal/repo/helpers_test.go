package repo

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// newTestDB opens a unique in-memory database per test so schemas never leak
// across tests. With no models passed, every model is migrated.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if len(migrate) == 0 {
		migrate = Models()
	}
	if err := db.AutoMigrate(migrate...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newEmptyDB opens a database with no tables, for error-path tests.
func newEmptyDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_empty?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func seedBot(t *testing.T, db *gorm.DB, id, userID string) *domain.Bot {
	t.Helper()
	now := time.Now().UTC()
	b := &domain.Bot{ID: id, UserID: userID, Name: "Bot " + id, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return b
}

func seedConversation(t *testing.T, db *gorm.DB, id, botID string) *domain.Conversation {
	t.Helper()
	c := &domain.Conversation{ID: id, BotID: botID, Title: "T"}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return c
}

func strptr(s string) *string { return &s }

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/llm"
	"github.com/tbourn/go-bot-builder/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedBot(t *testing.T, db *gorm.DB, userID string, mut func(*domain.Bot)) *domain.Bot {
	t.Helper()
	b := &domain.Bot{UserID: userID, Name: "Support"}
	if mut != nil {
		mut(b)
	}
	if err := repo.CreateBot(context.Background(), db, b); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return b
}

func seedKey(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	if _, err := repo.UpsertAPIKey(context.Background(), db, userID, "sk-test-123456"); err != nil {
		t.Fatalf("seed key: %v", err)
	}
}

func seedWidget(t *testing.T, db *gorm.DB, b *domain.Bot, limit int, active bool) *domain.WidgetConfig {
	t.Helper()
	w := &domain.WidgetConfig{BotID: b.ID, UserID: b.UserID, Title: "Help", MessageLimit: limit, IsActive: active}
	if err := repo.CreateWidget(context.Background(), db, w); err != nil {
		t.Fatalf("seed widget: %v", err)
	}
	return w
}

// fakeCompleter records requests and replies with a fixed text or error.
type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeCompleter) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func sp(s string) *string { return &s }
func ip(i int) *int       { return &i }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

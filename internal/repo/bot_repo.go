// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bot model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a bot is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Owner-scoped lookups (GetOwnedBot, ListBotsPage) back the dashboard API.
// GetBot is unscoped and serves the public chat surface, where the caller
// is an anonymous visitor and the bot id is the only credential.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a unique constraint rejected the insert.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}

// CreateBot inserts a new Bot owned by b.UserID. ID and timestamps are
// assigned here; the passed struct is updated in place.
func CreateBot(ctx context.Context, db *gorm.DB, b *domain.Bot) error {
	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	return db.WithContext(ctx).Create(b).Error
}

// GetBot fetches a bot by id regardless of owner.
func GetBot(ctx context.Context, db *gorm.DB, id string) (*domain.Bot, error) {
	var b domain.Bot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetOwnedBot fetches a bot by id and owner, or ErrNotFound.
func GetOwnedBot(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Bot, error) {
	var b domain.Bot
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBots returns the total number of bots owned by userID.
func CountBots(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListBotsPage returns a paginated slice of bots for userID, ordered by
// creation time descending. Use CountBots to obtain the total.
func ListBotsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TouchBot bumps UpdatedAt so listing ETags change after step edits.
func TouchBot(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

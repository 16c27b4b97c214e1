package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

// CreateVersion appends an immutable snapshot of steps for botID.
func CreateVersion(ctx context.Context, db *gorm.DB, botID, label string, steps []domain.SnapshotStep) (*domain.VersionSnapshot, error) {
	if steps == nil {
		steps = []domain.SnapshotStep{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	v := &domain.VersionSnapshot{
		ID:        uuid.NewString(),
		BotID:     botID,
		Label:     label,
		Data:      datatypes.JSON(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// LatestVersion returns the snapshot with the greatest CreatedAt for botID.
// Equal timestamps are broken by id descending so the choice is stable.
// Returns ErrNotFound when the bot has no snapshots.
func LatestVersion(ctx context.Context, db *gorm.DB, botID string) (*domain.VersionSnapshot, error) {
	var v domain.VersionSnapshot
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at desc, id desc").
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns all snapshots for botID, newest first.
func ListVersions(ctx context.Context, db *gorm.DB, botID string) ([]domain.VersionSnapshot, error) {
	var out []domain.VersionSnapshot
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at desc, id desc").
		Find(&out).Error
	return out, err
}

// DecodeSnapshot parses VersionSnapshot.Data. Undecodable data yields an
// empty slice rather than an error.
func DecodeSnapshot(v *domain.VersionSnapshot) []domain.SnapshotStep {
	if v == nil || len(v.Data) == 0 {
		return nil
	}
	var steps []domain.SnapshotStep
	if err := json.Unmarshal(v.Data, &steps); err != nil {
		return nil
	}
	return steps
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SafeNest/QueryShield/pkg/audit"
	"github.com/SafeNest/QueryShield/pkg/domain/auditlog"
)

type BlockedAttemptRepository struct {
	db *gorm.DB
}

func NewBlockedAttemptRepository(db *gorm.DB) auditlog.Repository {
	return &BlockedAttemptRepository{
		db: db,
	}
}

func (r *BlockedAttemptRepository) Archive(ctx context.Context, rows []auditlog.BlockedAttemptRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("archive blocked attempts: %w", err)
	}
	return nil
}

func (r *BlockedAttemptRepository) ListRecent(ctx context.Context, limit int) ([]auditlog.BlockedAttemptRow, error) {
	var rows []auditlog.BlockedAttemptRow
	if err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list blocked attempts: %w", err)
	}
	return rows, nil
}

func (r *BlockedAttemptRepository) CountBySeverity(ctx context.Context) (map[string]int64, error) {
	type bucket struct {
		Severity string
		Count    int64
	}
	var buckets []bucket
	if err := r.db.WithContext(ctx).
		Model(&auditlog.BlockedAttemptRow{}).
		Select("severity, COUNT(*) as count").
		Group("severity").
		Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("count blocked attempts: %w", err)
	}
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Severity] = b.Count
	}
	return counts, nil
}

// ArchiveSnapshot converts a ring-buffer snapshot into archive rows and
// stores them. Called out-of-band by the admin flow.
func ArchiveSnapshot(ctx context.Context, repo auditlog.Repository, entries []audit.BlockedAttempt) error {
	rows := make([]auditlog.BlockedAttemptRow, len(entries))
	for i, e := range entries {
		rows[i] = auditlog.BlockedAttemptRow{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Severity:  string(e.Severity),
			PatternID: e.PatternID,
			InputHash: e.InputHash,
			Context:   e.Context,
		}
	}
	return repo.Archive(ctx, rows)
}

// Package auditlog defines the persisted form of blocked-attempt records.
// Rows carry the salted input hash only; plaintext never reaches storage.
package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BlockedAttemptRow struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
	Severity  string    `gorm:"column:severity;index"`
	PatternID string    `gorm:"column:pattern_id"`
	InputHash string    `gorm:"column:input_hash"`
	Context   string    `gorm:"column:context"`
}

func (BlockedAttemptRow) TableName() string {
	return "public.blocked_attempts"
}

type Repository interface {
	Archive(ctx context.Context, rows []BlockedAttemptRow) error
	ListRecent(ctx context.Context, limit int) ([]BlockedAttemptRow, error)
	CountBySeverity(ctx context.Context) (map[string]int64, error)
}

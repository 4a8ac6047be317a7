package migrations

import (
	"gorm.io/gorm"

	"github.com/SafeNest/QueryShield/pkg/infra/database"
)

func init() {
	database.RegisterMigration(database.Migration{
		ID:   "20250801_create_blocked_attempts",
		Name: "create blocked_attempts archive table",
		Up: func(db *gorm.DB) error {
			const createSQL = `
CREATE TABLE IF NOT EXISTS public.blocked_attempts (
    id UUID PRIMARY KEY,
    timestamp TIMESTAMPTZ NOT NULL,
    severity TEXT NOT NULL,
    pattern_id TEXT NOT NULL,
    input_hash TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_blocked_attempts_timestamp ON public.blocked_attempts (timestamp);
CREATE INDEX IF NOT EXISTS idx_blocked_attempts_severity ON public.blocked_attempts (severity);`
			return db.Exec(createSQL).Error
		},
		Down: func(db *gorm.DB) error {
			return db.Exec("DROP TABLE IF EXISTS public.blocked_attempts").Error
		},
	})
}

package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		mode TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		resume_offset INTEGER NOT NULL DEFAULT 0,
		dispatched INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		abandoned INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sample_outcomes (
		sample_index INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		stop_reason TEXT NOT NULL,
		backend TEXT NOT NULL,
		turns INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sample_outcomes_run_id ON sample_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_sample_outcomes_written ON sample_outcomes(written);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RecordOutcome upserts the ledger row for a sample.
// Once a row is marked written it is final: the record is in the output and reruns never touch it.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o SampleOutcome) error {
	written := 0
	if o.Written {
		written = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sample_outcomes (sample_index, run_id, outcome, stop_reason, backend, turns, written, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(sample_index) DO UPDATE SET
			run_id = excluded.run_id,
			outcome = excluded.outcome,
			stop_reason = excluded.stop_reason,
			backend = excluded.backend,
			turns = excluded.turns,
			written = excluded.written,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
		WHERE sample_outcomes.written = 0
	`, o.SampleIndex, o.RunID, o.Outcome, o.StopReason, o.Backend, o.Turns, written, o.Error)
	if err != nil {
		return fmt.Errorf("failed to record outcome for sample %d: %w", o.SampleIndex, err)
	}
	return nil
}

// GetOutcome retrieves the ledger row for a sample.
func (s *SQLiteStore) GetOutcome(ctx context.Context, sampleIndex int) (*SampleOutcome, error) {
	var o SampleOutcome
	var written int
	var errStr sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT sample_index, run_id, outcome, stop_reason, backend, turns, written, error, updated_at
		FROM sample_outcomes
		WHERE sample_index = ?
	`, sampleIndex).Scan(&o.SampleIndex, &o.RunID, &o.Outcome, &o.StopReason, &o.Backend, &o.Turns, &written, &errStr, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no outcome for sample %d: %w", sampleIndex, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome: %w", err)
	}

	o.Written = written != 0
	o.Error = errStr.String
	return &o, nil
}

// WrittenIndices returns the set of sample indices whose record is in the output.
func (s *SQLiteStore) WrittenIndices(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sample_index FROM sample_outcomes WHERE written = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query written samples: %w", err)
	}
	defer rows.Close()

	written := make(map[int]bool)
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan sample index: %w", err)
		}
		written[idx] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating written samples: %w", err)
	}
	return written, nil
}

// OutcomeCounts returns how many samples currently hold each outcome.
func (s *SQLiteStore) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM sample_outcomes GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome counts: %w", err)
	}
	return counts, nil
}

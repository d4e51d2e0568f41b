// Package resume decides which samples still need generating.
package resume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Strategy names a resume strategy.
type Strategy string

const (
	// StrategyLines skips the first N samples, N being the output's line count.
	StrategyLines Strategy = "lines"
	// StrategyLedger skips exactly the indices the ledger recorded as written.
	StrategyLedger Strategy = "ledger"
)

// Plan is the outcome of resume planning.
type Plan struct {
	Strategy Strategy
	Offset   int   // first pending index
	Pending  []int // absolute sample indices still to generate, ascending
	Existing int   // lines already in the output
	Total    int   // samples in the input
}

// Skipped returns how many input samples are not pending.
func (p Plan) Skipped() int {
	return p.Total - len(p.Pending)
}

// Ledger reports which sample indices have a durable output record.
type Ledger interface {
	WrittenIndices(ctx context.Context) (map[int]bool, error)
}

// CountLines counts newline-terminated lines plus a trailing unterminated one.
func CountLines(r io.Reader) (int, error) {
	buf := make([]byte, 64*1024)
	count := 0
	last := byte('\n')
	for {
		n, err := r.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

// CountFileLines counts the lines of path, creating it (and its directory) when missing.
func CountFileLines(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
		created, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return 0, fmt.Errorf("create output file: %w", err)
		}
		return 0, created.Close()
	}
	if err != nil {
		return 0, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	n, err := CountLines(f)
	if err != nil {
		return 0, fmt.Errorf("count output lines: %w", err)
	}
	return n, nil
}

// PlanLines computes a line-count resume plan for total input samples.
func PlanLines(path string, total int, logger *slog.Logger) (Plan, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := CountFileLines(path)
	if err != nil {
		return Plan{}, err
	}

	offset := existing
	if offset > total {
		logger.Warn("output has more lines than the input has samples, nothing to resume",
			"lines", existing, "samples", total)
		offset = total
	}

	pending := make([]int, 0, total-offset)
	for i := offset; i < total; i++ {
		pending = append(pending, i)
	}
	return Plan{
		Strategy: StrategyLines,
		Offset:   offset,
		Pending:  pending,
		Existing: existing,
		Total:    total,
	}, nil
}

// PlanLedger computes a resume plan from the ledger's written indices.
// The output line count is still measured and compared.
func PlanLedger(ctx context.Context, ledger Ledger, path string, total int, logger *slog.Logger) (Plan, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := CountFileLines(path)
	if err != nil {
		return Plan{}, err
	}

	written, err := ledger.WrittenIndices(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("read ledger: %w", err)
	}

	inRange := 0
	for i := range written {
		if i >= 0 && i < total {
			inRange++
		}
	}
	if inRange != len(written) {
		logger.Warn("ledger holds indices beyond the input", "ledger_written", len(written), "samples", total)
	}

	// A ledger behind the output missed appends; the leading lines count as written.
	covered := 0
	switch {
	case len(written) < existing:
		covered = min(existing, total)
		logger.Warn("ledger is behind the output, treating leading lines as written",
			"ledger_written", len(written), "output_lines", existing, "assumed_written", covered)
	case len(written) > existing:
		logger.Warn("ledger and output disagree", "ledger_written", len(written), "output_lines", existing)
	}

	pending := make([]int, 0, total)
	for i := covered; i < total; i++ {
		if !written[i] {
			pending = append(pending, i)
		}
	}

	offset := total
	if len(pending) > 0 {
		offset = pending[0]
	}
	return Plan{
		Strategy: StrategyLedger,
		Offset:   offset,
		Pending:  pending,
		Existing: existing,
		Total:    total,
	}, nil
}

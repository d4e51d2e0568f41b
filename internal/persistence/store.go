package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one invocation of the generator against an output file.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while the run is in progress
	Mode         string
	InputPath    string
	OutputPath   string
	ResumeOffset int
	Dispatched   int
	Written      int
	Abandoned    int
}

// RunTotals are the counters stored when a run finishes.
type RunTotals struct {
	Dispatched int
	Written    int
	Abandoned  int
}

// SampleOutcome is the ledger row for one sample index.
type SampleOutcome struct {
	SampleIndex int
	RunID       string
	Outcome     string
	StopReason  string
	Backend     string
	Turns       int
	Written     bool
	Error       string
	UpdatedAt   time.Time
}

// Store defines the ledger: runs and the outcome of every attempted sample.
type Store interface {
	// Run lifecycle
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID string, totals RunTotals) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)

	// Sample outcomes
	RecordOutcome(ctx context.Context, outcome SampleOutcome) error
	GetOutcome(ctx context.Context, sampleIndex int) (*SampleOutcome, error)
	WrittenIndices(ctx context.Context) (map[int]bool, error)
	OutcomeCounts(ctx context.Context) (map[string]int, error)

	// Lifecycle
	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Pragmas go in the DSN so every pooled connection gets them.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_time_format=sqlite", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each store gets its own named database; the shared cache lets its connections see the same data.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Allow 2 connections: one for primary queries, one for reads issued while a row set is open
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

package persistence

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func startRun(t *testing.T, store *SQLiteStore, id string) {
	t.Helper()
	err := store.StartRun(context.Background(), Run{
		ID:           id,
		Mode:         "chat",
		InputPath:    "in.json",
		OutputPath:   "out.jsonl",
		ResumeOffset: 3,
	})
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
}

func TestStartAndFinishRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	id := NewRunID()
	startRun(t, store, id)

	run, err := store.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Mode != "chat" || run.ResumeOffset != 3 || run.StartedAt.IsZero() {
		t.Errorf("unexpected run: %+v", run)
	}
	if !run.FinishedAt.IsZero() {
		t.Error("unfinished run should have zero FinishedAt")
	}

	if err := store.FinishRun(ctx, id, RunTotals{Dispatched: 10, Written: 7, Abandoned: 3}); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	run, err = store.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.FinishedAt.IsZero() || run.Dispatched != 10 || run.Written != 7 || run.Abandoned != 3 {
		t.Errorf("unexpected finished run: %+v", run)
	}
}

func TestFinishRunNotFound(t *testing.T) {
	store := testStore(t)
	err := store.FinishRun(context.Background(), "missing", RunTotals{})
	if err == nil || !strings.Contains(err.Error(), "run not found") {
		t.Errorf("expected run not found error, got %v", err)
	}
}

func TestStartRunRequiresID(t *testing.T) {
	store := testStore(t)
	if err := store.StartRun(context.Background(), Run{Mode: "chat"}); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestListRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b"} {
		err := store.StartRun(ctx, Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute), Mode: "completion"})
		if err != nil {
			t.Fatalf("failed to start run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestRecordOutcomeAndWrittenIndices(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	startRun(t, store, "run-1")

	outcomes := []SampleOutcome{
		{SampleIndex: 0, RunID: "run-1", Outcome: "completed", StopReason: "end", Backend: "b0", Turns: 2, Written: true},
		{SampleIndex: 1, RunID: "run-1", Outcome: "failed", StopReason: "error", Backend: "b1", Error: "api error 500"},
		{SampleIndex: 2, RunID: "run-1", Outcome: "partial", StopReason: "truncated", Backend: "b0", Turns: 1, Written: true},
	}
	for _, o := range outcomes {
		if err := store.RecordOutcome(ctx, o); err != nil {
			t.Fatalf("failed to record outcome: %v", err)
		}
	}

	written, err := store.WrittenIndices(ctx)
	if err != nil {
		t.Fatalf("failed to get written indices: %v", err)
	}
	if len(written) != 2 || !written[0] || !written[2] || written[1] {
		t.Errorf("unexpected written set: %v", written)
	}

	got, err := store.GetOutcome(ctx, 1)
	if err != nil {
		t.Fatalf("failed to get outcome: %v", err)
	}
	if got.Outcome != "failed" || got.Error != "api error 500" || got.Written {
		t.Errorf("unexpected outcome: %+v", got)
	}

	counts, err := store.OutcomeCounts(ctx)
	if err != nil {
		t.Fatalf("failed to count outcomes: %v", err)
	}
	if counts["completed"] != 1 || counts["failed"] != 1 || counts["partial"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestRecordOutcomeRetryOverwritesFailure(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	startRun(t, store, "run-1")
	startRun(t, store, "run-2")

	store.RecordOutcome(ctx, SampleOutcome{SampleIndex: 5, RunID: "run-1", Outcome: "backend_unavailable", StopReason: "error", Backend: "b"})
	if err := store.RecordOutcome(ctx, SampleOutcome{SampleIndex: 5, RunID: "run-2", Outcome: "completed", StopReason: "end", Backend: "b", Written: true}); err != nil {
		t.Fatalf("failed to record outcome: %v", err)
	}

	got, err := store.GetOutcome(ctx, 5)
	if err != nil {
		t.Fatalf("failed to get outcome: %v", err)
	}
	if got.RunID != "run-2" || got.Outcome != "completed" || !got.Written {
		t.Errorf("retry should replace the failed row, got %+v", got)
	}
}

func TestRecordOutcomeWrittenIsFinal(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	startRun(t, store, "run-1")
	startRun(t, store, "run-2")

	store.RecordOutcome(ctx, SampleOutcome{SampleIndex: 7, RunID: "run-1", Outcome: "completed", StopReason: "end", Backend: "b", Written: true})
	store.RecordOutcome(ctx, SampleOutcome{SampleIndex: 7, RunID: "run-2", Outcome: "failed", StopReason: "error", Backend: "b"})

	got, err := store.GetOutcome(ctx, 7)
	if err != nil {
		t.Fatalf("failed to get outcome: %v", err)
	}
	if got.RunID != "run-1" || !got.Written {
		t.Errorf("written row must not be overwritten, got %+v", got)
	}
}

func TestForeignKeyEnforced(t *testing.T) {
	store := testStore(t)
	err := store.RecordOutcome(context.Background(), SampleOutcome{SampleIndex: 0, RunID: "no-such-run", Outcome: "completed", StopReason: "end"})
	if err == nil {
		t.Fatal("expected error when recording an outcome for a non-existent run, got nil")
	}
}

func TestGetOutcomeMissing(t *testing.T) {
	store := testStore(t)
	if _, err := store.GetOutcome(context.Background(), 42); err == nil {
		t.Error("expected error for missing outcome")
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	a := testStore(t)
	b := testStore(t)
	startRun(t, a, "only-in-a")

	if _, err := b.GetRun(context.Background(), "only-in-a"); err == nil {
		t.Error("memory stores should not share data")
	}
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	startRun(t, store, "run-1")
	store.RecordOutcome(ctx, SampleOutcome{SampleIndex: 3, RunID: "run-1", Outcome: "completed", StopReason: "end", Backend: "b", Written: true})
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	written, err := reopened.WrittenIndices(ctx)
	if err != nil {
		t.Fatalf("failed to get written indices: %v", err)
	}
	if !written[3] {
		t.Error("ledger should survive reopen")
	}
}

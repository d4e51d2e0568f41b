// Package orchestrator dispatches generation units over the backend pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/datagen/internal/backend"
	"github.com/aristath/datagen/internal/dataset"
	"github.com/aristath/datagen/internal/events"
	"github.com/aristath/datagen/internal/persistence"
	"github.com/aristath/datagen/internal/registry"
	"github.com/aristath/datagen/internal/replay"
)

// UnitResult is the outcome of one sample's unit of work.
type UnitResult struct {
	Index    int
	Backend  string
	Outcome  replay.Outcome
	Stop     replay.StopReason
	Pairs    int
	Written  bool
	Err      error
	Duration time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID        string
	Dispatched   int
	Written      int
	Abandoned    int
	LedgerErrors int // outcomes the ledger failed to store
	Outcomes     map[replay.Outcome]int
	Interrupted  bool // submission stopped early on operator request
	Duration     time.Duration
	Results      []UnitResult
}

// RecordWriter persists one output record. *sink.Sink implements it.
type RecordWriter interface {
	Append(v any) error
}

// Ledger records per-sample outcomes. *persistence.SQLiteStore implements it.
type Ledger interface {
	RecordOutcome(ctx context.Context, o persistence.SampleOutcome) error
}

// RunnerConfig configures the dispatcher.
type RunnerConfig struct {
	Workers  int                             // Max concurrent units (default 256)
	Registry *registry.Registry              // Live backend pool
	Factory  backend.Factory                 // Creates one client per unit
	Replayer *replay.Replayer                // Per-sample generation logic
	Sink     RecordWriter                    // Output log
	Ledger   Ledger                          // Optional outcome ledger (nil disables)
	Bus      *events.EventBus                // Optional event bus (nil disables)
	Breakers *backend.CircuitBreakerRegistry // Optional; non-nil enables retry + circuit breaking
	Retry    backend.RetryConfig
	RunID    string
	Logger   *slog.Logger
}

type backendCounters struct {
	handle    registry.Handle
	assigned  atomic.Int64
	written   atomic.Int64
	abandoned atomic.Int64
}

// Runner executes pending samples concurrently with bounded concurrency.
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger

	total        atomic.Int64
	dispatched   atomic.Int64
	running      atomic.Int64
	written      atomic.Int64
	abandoned    atomic.Int64
	ledgerErrors atomic.Int64
	startedAt    atomic.Int64 // unix nanos

	backends map[string]*backendCounters // fixed after construction

	mu       sync.Mutex
	outcomes map[replay.Outcome]int
	results  []UnitResult
}

// NewRunner validates cfg and creates a runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Registry == nil || cfg.Registry.Len() == 0 {
		return nil, registry.ErrNoBackends
	}
	if cfg.Factory == nil {
		return nil, errors.New("backend factory is required")
	}
	if cfg.Replayer == nil {
		return nil, errors.New("replayer is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("output sink is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backends := make(map[string]*backendCounters, cfg.Registry.Len())
	for _, h := range cfg.Registry.Handles() {
		backends[h.Address] = &backendCounters{handle: h}
	}

	return &Runner{
		cfg:      cfg,
		logger:   logger,
		backends: backends,
		outcomes: make(map[replay.Outcome]int),
	}, nil
}

// Run replays samples[i] for every i in pending and waits for all units.
// Cancelling ctx stops submission; units already started finish under a detached context
// so an interrupt never leaves a half-built record.
func (r *Runner) Run(ctx context.Context, samples []dataset.Sample, pending []int) (Summary, error) {
	for _, idx := range pending {
		if idx < 0 || idx >= len(samples) {
			return Summary{}, fmt.Errorf("pending index %d outside input of %d samples", idx, len(samples))
		}
	}

	start := time.Now()
	r.startedAt.Store(start.UnixNano())
	r.total.Store(int64(len(pending)))

	r.publish(events.TopicRun, events.RunStartedEvent{
		RunID:     r.cfg.RunID,
		Mode:      string(r.cfg.Replayer.Params().Mode),
		Pending:   len(pending),
		Offset:    firstOr(pending, len(samples)),
		Backends:  addresses(r.cfg.Registry.Handles()),
		Timestamp: start,
	})

	unitCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)

	for _, idx := range pending {
		if ctx.Err() != nil {
			break
		}
		sample := samples[idx]
		g.Go(func() error {
			// Interrupted while waiting for a free slot
			if ctx.Err() != nil {
				return nil
			}
			r.executeUnit(unitCtx, idx, sample)
			return nil
		})
	}
	_ = g.Wait()

	summary := r.summary(time.Since(start))
	summary.Interrupted = ctx.Err() != nil && summary.Dispatched < len(pending)

	r.publish(events.TopicRun, events.RunFinishedEvent{
		RunID:       r.cfg.RunID,
		Dispatched:  summary.Dispatched,
		Written:     summary.Written,
		Abandoned:   summary.Abandoned,
		Interrupted: summary.Interrupted,
		Duration:    summary.Duration,
		Timestamp:   time.Now(),
	})
	return summary, nil
}

// executeUnit runs one sample on its assigned backend and records the outcome.
func (r *Runner) executeUnit(ctx context.Context, idx int, sample dataset.Sample) {
	handle := r.cfg.Registry.Assign(idx)
	counters := r.backends[handle.Address]

	r.dispatched.Add(1)
	r.running.Add(1)
	counters.assigned.Add(1)

	r.publish(events.TopicSample, events.SampleStartedEvent{Index: idx, Backend: handle.Address, Timestamp: time.Now()})

	result := r.generate(ctx, idx, handle.Address, sample)

	r.running.Add(-1)
	r.record(ctx, result, counters)
}

func (r *Runner) generate(ctx context.Context, idx int, address string, sample dataset.Sample) UnitResult {
	start := time.Now()
	result := UnitResult{Index: idx, Backend: address}

	client, err := r.cfg.Factory(address)
	if err != nil {
		result.Outcome = replay.OutcomeBackendUnavailable
		result.Stop = replay.StopError
		result.Err = fmt.Errorf("create backend client: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	// Released on every exit path, including panics in the replay
	defer client.Close()

	var b backend.Backend = client
	if r.cfg.Breakers != nil {
		b = backend.WithResilience(client, r.cfg.Breakers.Get(address), r.cfg.Retry)
	}

	res := r.cfg.Replayer.Replay(ctx, b, sample)
	result.Outcome = res.Outcome
	result.Stop = res.Stop
	result.Pairs = res.Pairs
	result.Err = res.Err

	if res.Record != nil {
		if err := r.cfg.Sink.Append(res.Record); err != nil {
			result.Err = errors.Join(result.Err, fmt.Errorf("append record: %w", err))
		} else {
			result.Written = true
		}
	}

	result.Duration = time.Since(start)
	return result
}

// record updates counters, the ledger and subscribers with a finished unit.
func (r *Runner) record(ctx context.Context, res UnitResult, counters *backendCounters) {
	if res.Written {
		r.written.Add(1)
		counters.written.Add(1)
	} else {
		r.abandoned.Add(1)
		counters.abandoned.Add(1)
	}

	r.mu.Lock()
	r.outcomes[res.Outcome]++
	r.results = append(r.results, res)
	r.mu.Unlock()

	r.log(res)

	if r.cfg.Ledger != nil {
		errStr := ""
		if res.Err != nil {
			errStr = res.Err.Error()
		}
		err := r.cfg.Ledger.RecordOutcome(ctx, persistence.SampleOutcome{
			SampleIndex: res.Index,
			RunID:       r.cfg.RunID,
			Outcome:     string(res.Outcome),
			StopReason:  string(res.Stop),
			Backend:     res.Backend,
			Turns:       res.Pairs,
			Written:     res.Written,
			Error:       errStr,
		})
		if err != nil {
			// The record is already in the output; a lines resume still sees it
			r.ledgerErrors.Add(1)
			r.logger.Error("ledger update failed", "sample", res.Index, "written", res.Written, "error", err)
		}
	}

	now := time.Now()
	if res.Written {
		r.publish(events.TopicSample, events.SampleWrittenEvent{
			Index:     res.Index,
			Backend:   res.Backend,
			Outcome:   string(res.Outcome),
			Stop:      string(res.Stop),
			Pairs:     res.Pairs,
			Duration:  res.Duration,
			Timestamp: now,
		})
	} else {
		errStr := ""
		if res.Err != nil {
			errStr = res.Err.Error()
		}
		r.publish(events.TopicSample, events.SampleAbandonedEvent{
			Index:     res.Index,
			Backend:   res.Backend,
			Outcome:   string(res.Outcome),
			Stop:      string(res.Stop),
			Error:     errStr,
			Duration:  res.Duration,
			Timestamp: now,
		})
	}

	snap := r.Snapshot()
	r.publish(events.TopicRun, events.RunProgressEvent{
		Total:     snap.Total,
		Done:      snap.Done,
		Written:   snap.Written,
		Abandoned: snap.Abandoned,
		Running:   snap.Running,
		Timestamp: now,
	})
}

func (r *Runner) log(res UnitResult) {
	attrs := []any{"sample", res.Index, "backend", res.Backend, "outcome", res.Outcome, "stop", res.Stop}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err)
	}

	switch res.Outcome {
	case replay.OutcomeBackendUnavailable, replay.OutcomeFailed:
		r.logger.Warn("sample abandoned", attrs...)
	case replay.OutcomeMalformed, replay.OutcomeEmpty:
		r.logger.Debug("sample skipped", attrs...)
	default:
		if res.Written {
			r.logger.Debug("sample written", append(attrs, "pairs", res.Pairs, "duration", res.Duration)...)
		} else {
			r.logger.Error("record lost", attrs...)
		}
	}
}

func (r *Runner) publish(topic string, event events.Event) {
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(topic, event)
	}
}

func (r *Runner) summary(elapsed time.Duration) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcomes := make(map[replay.Outcome]int, len(r.outcomes))
	for k, v := range r.outcomes {
		outcomes[k] = v
	}
	results := make([]UnitResult, len(r.results))
	copy(results, r.results)

	return Summary{
		RunID:        r.cfg.RunID,
		Dispatched:   int(r.dispatched.Load()),
		Written:      int(r.written.Load()),
		Abandoned:    int(r.abandoned.Load()),
		LedgerErrors: int(r.ledgerErrors.Load()),
		Outcomes:     outcomes,
		Duration:     elapsed,
		Results:      results,
	}
}

func firstOr(xs []int, fallback int) int {
	if len(xs) == 0 {
		return fallback
	}
	return xs[0]
}

func addresses(handles []registry.Handle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.Address
	}
	return out
}

package orchestrator

import (
	"time"
)

// BackendSnapshot is the live view of one backend's share of the run.
type BackendSnapshot struct {
	Address   string `json:"address"`
	ModelID   string `json:"model_id"`
	Assigned  int    `json:"assigned"`
	Written   int    `json:"written"`
	Abandoned int    `json:"abandoned"`
}

// Snapshot is a point-in-time copy of the run counters.
type Snapshot struct {
	RunID     string            `json:"run_id"`
	Total     int               `json:"total"`
	Done      int               `json:"done"`
	Running   int               `json:"running"`
	Written   int               `json:"written"`
	Abandoned int               `json:"abandoned"`
	Outcomes  map[string]int    `json:"outcomes"`
	Backends  []BackendSnapshot `json:"backends"`
	StartedAt time.Time         `json:"started_at,omitzero"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
}

// Snapshot reads the live counters. Safe to call from any goroutine.
func (r *Runner) Snapshot() Snapshot {
	written := int(r.written.Load())
	abandoned := int(r.abandoned.Load())

	snap := Snapshot{
		RunID:     r.cfg.RunID,
		Total:     int(r.total.Load()),
		Done:      written + abandoned,
		Running:   int(r.running.Load()),
		Written:   written,
		Abandoned: abandoned,
	}

	if started := r.startedAt.Load(); started != 0 {
		snap.StartedAt = time.Unix(0, started)
		snap.Elapsed = time.Since(snap.StartedAt)
	}

	r.mu.Lock()
	snap.Outcomes = make(map[string]int, len(r.outcomes))
	for k, v := range r.outcomes {
		snap.Outcomes[string(k)] = v
	}
	r.mu.Unlock()

	// Registry order, so views are stable
	for _, h := range r.cfg.Registry.Handles() {
		c := r.backends[h.Address]
		snap.Backends = append(snap.Backends, BackendSnapshot{
			Address:   h.Address,
			ModelID:   h.ModelID,
			Assigned:  int(c.assigned.Load()),
			Written:   int(c.written.Load()),
			Abandoned: int(c.abandoned.Load()),
		})
	}
	return snap
}

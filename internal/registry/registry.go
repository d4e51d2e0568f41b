// Package registry discovers live inference backends and assigns work to them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/datagen/internal/backend"
)

// ErrNoBackends is returned when no candidate address answered with a model listing.
var ErrNoBackends = errors.New("no live backends")

// Handle is one live backend.
type Handle struct {
	Address string   `json:"address"`
	ModelID string   `json:"model_id"`
	Models  []string `json:"models"`
}

// Registry is the ordered, read-only pool of live backends.
type Registry struct {
	pool []Handle
}

// New builds a registry over an already probed pool.
func New(pool []Handle) (*Registry, error) {
	if len(pool) == 0 {
		return nil, ErrNoBackends
	}
	cp := make([]Handle, len(pool))
	copy(cp, pool)
	return &Registry{pool: cp}, nil
}

// Len returns the pool size.
func (r *Registry) Len() int { return len(r.pool) }

// Handles returns a copy of the pool in probe order.
func (r *Registry) Handles() []Handle {
	cp := make([]Handle, len(r.pool))
	copy(cp, r.pool)
	return cp
}

// Assign returns the backend for the sample at absolute index i.
func (r *Registry) Assign(i int) Handle {
	return r.pool[Assign(i, len(r.pool))]
}

// Assign maps an absolute sample index onto a pool of the given size.
// The mapping depends only on the index, so reruns reproduce it.
func Assign(index, size int) int {
	slot := index % size
	if slot < 0 {
		slot += size
	}
	return slot
}

// ProbeConfig controls discovery.
type ProbeConfig struct {
	Candidates  []string
	Timeout     time.Duration
	Concurrency int
}

// Probe lists models on every candidate and returns the live ones in candidate order.
// A failing candidate is logged and skipped; it never aborts the others.
func Probe(ctx context.Context, cfg ProbeConfig, factory backend.Factory, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	slots := make([]*Handle, len(cfg.Candidates))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}

	for i, addr := range cfg.Candidates {
		g.Go(func() error {
			h, err := probeOne(gctx, addr, cfg.Timeout, factory)
			if err != nil {
				logger.Debug("backend probe failed", "backend", addr, "error", err)
				return nil
			}
			logger.Info("backend live", "backend", addr, "models", h.Models)
			slots[i] = h
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := make([]Handle, 0, len(slots))
	for _, h := range slots {
		if h != nil {
			pool = append(pool, *h)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("probed %d candidates: %w", len(cfg.Candidates), ErrNoBackends)
	}
	return &Registry{pool: pool}, nil
}

func probeOne(ctx context.Context, addr string, timeout time.Duration, factory backend.Factory) (*Handle, error) {
	b, err := factory(addr)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	models, err := b.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, errors.New("no models loaded")
	}
	return &Handle{Address: b.Address(), ModelID: models[0], Models: models}, nil
}

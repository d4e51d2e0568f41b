package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxRetries          uint64        // Retries after the first attempt; 0 disables retrying
	InitialInterval     time.Duration // Initial retry interval (default 500ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:          0,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// CircuitBreakerRegistry manages per-address circuit breakers.
// All tasks assigned to the same backend share one breaker, so a backend
// that dies mid-run fails fast instead of timing out for every sample.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(logger *slog.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

// Get returns the circuit breaker for the given backend address.
// Creates a new one if it doesn't exist.
func (r *CircuitBreakerRegistry) Get(address string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[address]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        address,
		MaxRequests: 3,                // Allow 3 test requests in half-open state
		Interval:    0,                // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "backend", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Operator cancellation is not a backend failure
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[address] = cb
	return cb
}

// Resilient wraps a Backend so every call goes through a circuit breaker and bounded retries.
type Resilient struct {
	inner Backend
	cb    *gobreaker.CircuitBreaker
	retry RetryConfig
}

// WithResilience decorates b. Truncated results are successes and are never retried.
func WithResilience(b Backend, cb *gobreaker.CircuitBreaker, retry RetryConfig) *Resilient {
	return &Resilient{inner: b, cb: cb, retry: retry}
}

// ListModels lists models with retry.
func (r *Resilient) ListModels(ctx context.Context) ([]string, error) {
	return callWithRetry(ctx, r.cb, r.retry, func() ([]string, error) {
		return r.inner.ListModels(ctx)
	})
}

// Chat runs a chat completion with retry.
func (r *Resilient) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	return callWithRetry(ctx, r.cb, r.retry, func() (ChatResult, error) {
		return r.inner.Chat(ctx, req)
	})
}

// Complete runs a text completion with retry.
func (r *Resilient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return callWithRetry(ctx, r.cb, r.retry, func() (CompletionResult, error) {
		return r.inner.Complete(ctx, req)
	})
}

// Address returns the wrapped backend's address.
func (r *Resilient) Address() string { return r.inner.Address() }

// Close closes the wrapped backend.
func (r *Resilient) Close() error { return r.inner.Close() }

// callWithRetry runs fn with exponential backoff retry and circuit breaker protection.
func callWithRetry[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T

	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		result = out.(T)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, retryCfg.MaxRetries), ctx)

	err := backoff.Retry(operation, bounded)
	return result, err
}

var _ Backend = (*Resilient)(nil)

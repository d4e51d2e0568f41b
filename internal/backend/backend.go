package backend

import (
	"context"
	"fmt"
)

// Backend defines the interface that every inference endpoint adapter must implement.
type Backend interface {
	// ListModels returns the model identifiers served by the backend.
	ListModels(ctx context.Context) ([]string, error)

	// Chat runs a chat completion over the given context.
	Chat(ctx context.Context, req ChatRequest) (ChatResult, error)

	// Complete runs a raw text completion.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)

	// Address returns the base URL the backend talks to.
	Address() string

	// Close releases the connections held by this backend instance.
	Close() error
}

// Factory creates a backend for an address. The dispatcher creates one per task
// so that every task owns, and releases, its own connections.
type Factory func(address string) (Backend, error)

// New creates a new backend based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate adapter.
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "openai", "vllm":
		return NewOpenAIAdapter(cfg)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// NewFactory returns a Factory that builds backends from a template config, overriding BaseURL per address.
func NewFactory(template Config) Factory {
	return func(address string) (Backend, error) {
		cfg := template
		cfg.BaseURL = address
		return New(cfg)
	}
}

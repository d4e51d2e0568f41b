package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/datagen/internal/prompt"
	"github.com/aristath/datagen/internal/registry"
	"github.com/aristath/datagen/internal/replay"
)

// ErrInvalid marks configuration errors; main exits with status 2 on them.
var ErrInvalid = errors.New("invalid configuration")

// Validate reports every problem with cfg in one error wrapping ErrInvalid.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.Input == "" {
		add("input path is required")
	}
	if cfg.Output == "" {
		add("output path is required")
	}
	if _, err := replay.ParseMode(cfg.Generation.Mode); err != nil {
		add("%v", err)
	}
	if cfg.Generation.Workers < 1 {
		add("workers must be at least 1, got %d", cfg.Generation.Workers)
	}
	if cfg.Generation.MaxTokens < 1 {
		add("max_tokens must be at least 1, got %d", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Temperature < 0 {
		add("temperature must not be negative, got %v", cfg.Generation.Temperature)
	}
	if cfg.Generation.Template != "" {
		if _, ok := prompt.Lookup(cfg.Generation.Template); !ok {
			add("unknown template %q (known: %s)", cfg.Generation.Template, strings.Join(prompt.Names(), ", "))
		}
	}

	ports, err := registry.ParsePortRange(cfg.Backends.Ports)
	if err != nil {
		add("%v", err)
	}
	if len(cfg.Backends.Addresses) == 0 && (cfg.Backends.Host == "" || ports.First == 0) {
		add("no backend candidates: set addresses or host and ports")
	}
	if cfg.Backends.ProbeTimeout <= 0 {
		add("probe_timeout must be positive")
	}
	if cfg.Backends.RequestTimeout < 0 {
		add("request_timeout must not be negative")
	}

	switch cfg.Resume.Strategy {
	case "lines", "ledger":
	default:
		add("unknown resume strategy %q (want lines or ledger)", cfg.Resume.Strategy)
	}

	switch cfg.UI {
	case "bar", "tui", "none":
	default:
		add("unknown ui %q (want bar, tui or none)", cfg.UI)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("unknown log level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		add("unknown log format %q (want text or json)", cfg.Log.Format)
	}

	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		add("nats subject prefix is required when nats url is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

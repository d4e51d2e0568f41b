package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads and merges configuration from global and explicit paths.
// Order of precedence (highest to lowest): explicit config, global config, defaults.
// A missing global file is not an error; a missing explicit file is.
// Malformed JSON returns an error.
func Load(globalPath, explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath, false); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if explicitPath != "" {
		if err := mergeConfigFile(cfg, explicitPath, true); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	return cfg, nil
}

// GlobalPath returns ~/.datagen/config.json, or "" when the home directory is unknown.
func GlobalPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".datagen", "config.json")
}

// mergeConfigFile decodes a JSON config file over base. Keys absent from the
// file keep their current values.
func mergeConfigFile(base *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("DATAGEN_API_KEY"); v != "" {
		cfg.Backends.APIKey = v
	}
	if v := getenv("DATAGEN_BACKENDS"); v != "" {
		cfg.Backends.Addresses = splitList(v)
	}
	if v := getenv("DATAGEN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := getenv("NATS_TOKEN"); v != "" {
		cfg.NATS.Token = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

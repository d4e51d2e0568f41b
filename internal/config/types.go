package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and writes JSON as a string such as "1s" or "10m".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are nanoseconds
		var n int64
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return fmt.Errorf("duration must be a string like \"1s\": %w", err)
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// BackendsConfig defines where to discover backends and how to talk to them.
type BackendsConfig struct {
	Addresses      []string `json:"addresses,omitempty"` // Explicit base URLs, probed before the port range
	Scheme         string   `json:"scheme"`              // Scheme for port-range candidates
	Host           string   `json:"host"`                // Host for port-range candidates
	Ports          string   `json:"ports"`               // Inclusive range like "8000-8001"; empty disables the range
	PathPrefix     string   `json:"path_prefix"`         // API root appended to each candidate (e.g., "/v1")
	APIKey         string   `json:"api_key,omitempty"`   // Bearer token; local servers accept "EMPTY"
	ProbeTimeout   Duration `json:"probe_timeout"`       // Per-candidate model listing timeout at startup
	RequestTimeout Duration `json:"request_timeout"`     // Per-request timeout during generation; 0 disables it
	Retries        uint64   `json:"retries"`             // Retries per backend call; 0 disables retry and the circuit breaker
}

// GenerationConfig holds the sampling settings shared by every sample.
type GenerationConfig struct {
	Mode        string  `json:"mode"`               // "chat" or "completion"
	Workers     int     `json:"workers"`            // Maximum concurrent samples
	Temperature float64 `json:"temperature"`        // Sampling temperature
	MaxTokens   int     `json:"max_tokens"`         // Maximum generated tokens per call
	Template    string  `json:"template,omitempty"` // Forces a prompt template; empty selects by model id
}

// ResumeConfig selects how an interrupted run picks up.
type ResumeConfig struct {
	Strategy string `json:"strategy"`         // "lines" or "ledger"
	Ledger   string `json:"ledger,omitempty"` // SQLite ledger path; defaults next to the output in ledger mode
}

// StatusConfig enables the HTTP status API.
type StatusConfig struct {
	Addr string `json:"addr,omitempty"` // Listen address, e.g. ":9090"; empty disables the API
}

// NATSConfig enables forwarding run events to NATS.
type NATSConfig struct {
	URL     string `json:"url,omitempty"` // Empty disables publishing
	Token   string `json:"token,omitempty"`
	Subject string `json:"subject"` // Subject prefix
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `json:"level"`          // debug, info, warn or error
	Format string `json:"format"`         // text or json
	File   string `json:"file,omitempty"` // Log destination; empty means stderr
}

// Config is the top-level configuration.
type Config struct {
	Input      string           `json:"input,omitempty"`
	Output     string           `json:"output,omitempty"`
	Generation GenerationConfig `json:"generation"`
	Backends   BackendsConfig   `json:"backends"`
	Resume     ResumeConfig     `json:"resume"`
	UI         string           `json:"ui"` // bar, tui or none
	Status     StatusConfig     `json:"status"`
	NATS       NATSConfig       `json:"nats"`
	Log        LogConfig        `json:"log"`
}

// LedgerPath returns the ledger file in use, or "" when no ledger is kept.
// The ledger strategy without an explicit path stores it beside the output.
func (c *Config) LedgerPath() string {
	if c.Resume.Ledger != "" {
		return c.Resume.Ledger
	}
	if c.Resume.Strategy == "ledger" && c.Output != "" {
		return c.Output + ".ledger.db"
	}
	return ""
}

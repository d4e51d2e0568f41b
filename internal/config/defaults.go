package config

import "time"

// DefaultConfig returns the default configuration: completion mode, 256 workers,
// and backends probed on localhost ports 8000-8001.
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			Mode:        "completion",
			Workers:     256,
			Temperature: 0.3,
			MaxTokens:   2048,
		},
		Backends: BackendsConfig{
			Scheme:         "http",
			Host:           "localhost",
			Ports:          "8000-8001",
			PathPrefix:     "/v1",
			APIKey:         "EMPTY",
			ProbeTimeout:   Duration(time.Second),
			RequestTimeout: Duration(10 * time.Minute),
		},
		Resume: ResumeConfig{
			Strategy: "lines",
		},
		UI: "bar",
		NATS: NATSConfig{
			Subject: "datagen",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

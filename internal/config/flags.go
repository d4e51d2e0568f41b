package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Options are command-line settings that are not part of Config.
type Options struct {
	ConfigPath  string // -config
	WriteConfig string // -write-config: save the effective config here and exit
}

// Parse builds the effective configuration from defaults, the global and
// -config files, the environment and args, in increasing precedence. Only
// flags present in args override file and environment values.
func Parse(args []string, getenv func(string) string, output io.Writer) (*Config, Options, error) {
	var opts Options
	d := DefaultConfig()

	fs := flag.NewFlagSet("datagen", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.ConfigPath, "config", "", "JSON config file")
	fs.StringVar(&opts.WriteConfig, "write-config", "", "write the effective config to this path and exit")

	input := fs.String("input", "", "input dataset (JSON array or JSON lines)")
	out := fs.String("output", "", "output JSON lines file")
	workers := fs.Int("workers", d.Generation.Workers, "maximum concurrent samples")
	temperature := fs.Float64("temperature", d.Generation.Temperature, "sampling temperature")
	maxTokens := fs.Int("max-tokens", d.Generation.MaxTokens, "maximum generated tokens per call")
	mode := fs.String("mode", d.Generation.Mode, "generation mode: chat or completion")
	chat := fs.Bool("chat", false, "shorthand for -mode chat")
	template := fs.String("template", "", "force a prompt template for completion mode")

	backends := fs.String("backends", "", "comma-separated backend base URLs, probed before the port range")
	host := fs.String("host", d.Backends.Host, "host for port-range candidates")
	ports := fs.String("ports", d.Backends.Ports, "port range to probe, e.g. 8000-8001")
	pathPrefix := fs.String("path-prefix", d.Backends.PathPrefix, "API root on each candidate")
	apiKey := fs.String("api-key", d.Backends.APIKey, "bearer token sent to backends")
	probeTimeout := fs.Duration("probe-timeout", d.Backends.ProbeTimeout.Std(), "model listing timeout per candidate")
	requestTimeout := fs.Duration("request-timeout", d.Backends.RequestTimeout.Std(), "timeout per generation request (0 disables)")
	retries := fs.Uint64("retries", d.Backends.Retries, "retries per backend call; 0 disables retry and the circuit breaker")

	resumeStrategy := fs.String("resume", d.Resume.Strategy, "resume strategy: lines or ledger")
	ledger := fs.String("ledger", "", "SQLite ledger path (default <output>.ledger.db in ledger mode)")

	ui := fs.String("ui", d.UI, "progress display: bar, tui or none")
	statusAddr := fs.String("status-addr", "", "serve the status API on this address")
	natsURL := fs.String("nats-url", "", "publish run events to this NATS server")
	natsSubject := fs.String("nats-subject", d.NATS.Subject, "NATS subject prefix")

	logLevel := fs.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	logFormat := fs.String("log-format", d.Log.Format, "log format: text or json")
	logFile := fs.String("log-file", "", "write logs to this file instead of stderr")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}
	if fs.NArg() > 0 {
		return nil, opts, fmt.Errorf("%w: unexpected arguments: %s", ErrInvalid, strings.Join(fs.Args(), " "))
	}

	cfg, err := Load(GlobalPath(), opts.ConfigPath)
	if err != nil {
		return nil, opts, err
	}
	ApplyEnv(cfg, getenv)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input = *input
		case "output":
			cfg.Output = *out
		case "workers":
			cfg.Generation.Workers = *workers
		case "temperature":
			cfg.Generation.Temperature = *temperature
		case "max-tokens":
			cfg.Generation.MaxTokens = *maxTokens
		case "mode":
			cfg.Generation.Mode = *mode
		case "template":
			cfg.Generation.Template = *template
		case "backends":
			cfg.Backends.Addresses = splitList(*backends)
		case "host":
			cfg.Backends.Host = *host
		case "ports":
			cfg.Backends.Ports = *ports
		case "path-prefix":
			cfg.Backends.PathPrefix = *pathPrefix
		case "api-key":
			cfg.Backends.APIKey = *apiKey
		case "probe-timeout":
			cfg.Backends.ProbeTimeout = Duration(*probeTimeout)
		case "request-timeout":
			cfg.Backends.RequestTimeout = Duration(*requestTimeout)
		case "retries":
			cfg.Backends.Retries = *retries
		case "resume":
			cfg.Resume.Strategy = *resumeStrategy
		case "ledger":
			cfg.Resume.Ledger = *ledger
		case "ui":
			cfg.UI = *ui
		case "status-addr":
			cfg.Status.Addr = *statusAddr
		case "nats-url":
			cfg.NATS.URL = *natsURL
		case "nats-subject":
			cfg.NATS.Subject = *natsSubject
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	// -chat wins over -mode
	if *chat {
		cfg.Generation.Mode = "chat"
	}

	return cfg, opts, nil
}

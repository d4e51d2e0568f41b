// Command datagen replays dialogue prompts against a pool of local
// OpenAI-compatible inference servers and appends the generated
// conversations to a JSON-lines file, resuming where a previous run stopped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/datagen/internal/api"
	"github.com/aristath/datagen/internal/backend"
	"github.com/aristath/datagen/internal/config"
	"github.com/aristath/datagen/internal/dataset"
	"github.com/aristath/datagen/internal/events"
	"github.com/aristath/datagen/internal/orchestrator"
	"github.com/aristath/datagen/internal/persistence"
	"github.com/aristath/datagen/internal/progress"
	"github.com/aristath/datagen/internal/prompt"
	"github.com/aristath/datagen/internal/publish"
	"github.com/aristath/datagen/internal/registry"
	"github.com/aristath/datagen/internal/replay"
	"github.com/aristath/datagen/internal/resume"
	"github.com/aristath/datagen/internal/sink"
	"github.com/aristath/datagen/internal/tui"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

// probeConcurrency bounds concurrent model listings at startup.
const probeConcurrency = 16

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// Restore default signal handling so a second interrupt kills the process
		stop()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// run executes one generation run and returns the process exit code.
// Cancelling ctx stops dispatching; samples already in flight still finish.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	cfg, opts, err := config.Parse(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInvalid
	}

	if opts.WriteConfig != "" {
		if err := config.Save(cfg, opts.WriteConfig); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "Wrote %s\n", opts.WriteConfig)
		return exitOK
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInvalid
	}

	logger, closeLog, err := setupLogging(cfg.Log, cfg.UI, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer closeLog()

	if err := generate(ctx, cfg, logger, stdout, stderr); err != nil {
		logger.Error("generation failed", "error", err)
		if cfg.UI == "tui" && cfg.Log.File == "" {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitFailure
	}
	return exitOK
}

func generate(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	samples, err := dataset.Load(cfg.Input)
	if err != nil {
		return err
	}
	logger.Info("loaded input", "path", cfg.Input, "samples", len(samples))

	mode, _ := replay.ParseMode(cfg.Generation.Mode)
	templates, err := prompt.NewSelector(cfg.Generation.Template)
	if err != nil {
		return err
	}

	factory := backend.NewFactory(backend.Config{
		Type:    "vllm",
		APIKey:  cfg.Backends.APIKey,
		Timeout: cfg.Backends.RequestTimeout.Std(),
	})

	// Backend discovery
	ports, _ := registry.ParsePortRange(cfg.Backends.Ports)
	candidates := registry.Candidates(registry.CandidateSpec{
		Addresses:  cfg.Backends.Addresses,
		Scheme:     cfg.Backends.Scheme,
		Host:       cfg.Backends.Host,
		Ports:      ports,
		PathPrefix: cfg.Backends.PathPrefix,
	})
	pool, err := registry.Probe(ctx, registry.ProbeConfig{
		Candidates:  candidates,
		Timeout:     cfg.Backends.ProbeTimeout.Std(),
		Concurrency: probeConcurrency,
	}, factory, logger)
	if err != nil {
		return err
	}

	// Optional ledger
	var store *persistence.SQLiteStore
	if path := cfg.LedgerPath(); path != "" {
		store, err = persistence.NewSQLiteStore(ctx, path)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("ledger opened", "path", path)
	}

	// Resume planning
	var plan resume.Plan
	if cfg.Resume.Strategy == string(resume.StrategyLedger) {
		plan, err = resume.PlanLedger(ctx, store, cfg.Output, len(samples), logger)
	} else {
		plan, err = resume.PlanLines(cfg.Output, len(samples), logger)
	}
	if err != nil {
		return err
	}
	logger.Info("resume plan",
		"strategy", plan.Strategy,
		"offset", plan.Offset,
		"pending", len(plan.Pending),
		"existing_lines", plan.Existing)

	out, err := sink.Open(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	runID := persistence.NewRunID()
	if store != nil {
		if err := store.StartRun(ctx, persistence.Run{
			ID:           runID,
			Mode:         string(mode),
			InputPath:    cfg.Input,
			OutputPath:   cfg.Output,
			ResumeOffset: plan.Offset,
		}); err != nil {
			return err
		}
	}

	bus := events.NewEventBus()
	defer bus.Close()

	runnerCfg := orchestrator.RunnerConfig{
		Workers:  cfg.Generation.Workers,
		Registry: pool,
		Factory:  factory,
		Replayer: replay.New(replay.Params{
			Mode:        mode,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
		}, templates, logger),
		Sink:   out,
		Bus:    bus,
		RunID:  runID,
		Logger: logger,
	}
	if store != nil {
		runnerCfg.Ledger = store
	}
	if cfg.Backends.Retries > 0 {
		runnerCfg.Breakers = backend.NewCircuitBreakerRegistry(logger)
		runnerCfg.Retry = backend.DefaultRetryConfig()
		runnerCfg.Retry.MaxRetries = cfg.Backends.Retries
	}

	runner, err := orchestrator.NewRunner(runnerCfg)
	if err != nil {
		return err
	}

	// Status API lives until generate returns
	if cfg.Status.Addr != "" {
		apiCtx, stopAPI := context.WithCancel(context.Background())
		defer stopAPI()
		srv := api.NewServer(cfg.Status.Addr, runner, logger)
		go func() {
			if err := srv.Start(apiCtx); err != nil {
				logger.Error("status API error", "error", err)
			}
		}()
	}

	// Event forwarding
	var forwarder *publish.Forwarder
	if cfg.NATS.URL != "" {
		client, err := publish.NewClient(cfg.NATS.URL, cfg.NATS.Token, logger)
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
		} else {
			defer client.Close()
			forwarder = publish.NewForwarder(client, cfg.NATS.Subject, bus, 2*len(plan.Pending)+16, logger)
			forwarder.Start()
			logger.Info("publishing events", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
		}
	}

	// Progress display
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	var bar *progress.Bar
	var dashboard *tea.Program
	dashboardDone := make(chan error, 1)
	switch cfg.UI {
	case "bar":
		bar = progress.New(stderr, len(plan.Pending), bus)
		bar.Start()
	case "tui":
		model := tui.New(bus, tui.RunInfo{
			RunID:   runID,
			Mode:    string(mode),
			Pending: len(plan.Pending),
			Pool:    pool.Handles(),
		}, stopDispatch)
		dashboard = tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(stdout))
		go func() {
			_, err := dashboard.Run()
			dashboardDone <- err
		}()
	}

	summary, err := runner.Run(dispatchCtx, samples, plan.Pending)
	if err != nil {
		return err
	}

	// Closing the bus ends every consumer
	bus.Close()
	if bar != nil {
		bar.Wait()
	}
	if dashboard != nil {
		select {
		case err := <-dashboardDone:
			if err != nil {
				logger.Warn("dashboard exited with error", "error", err)
			}
		case <-time.After(5 * time.Second):
			dashboard.Kill()
		}
	}
	if forwarder != nil {
		published, failed := forwarder.Wait()
		logger.Debug("events forwarded", "published", published, "failed", failed)
	}
	if dropped := bus.Dropped(); dropped > 0 {
		logger.Debug("event deliveries dropped", "count", dropped)
	}

	if store != nil {
		if err := store.FinishRun(context.Background(), runID, persistence.RunTotals{
			Dispatched: summary.Dispatched,
			Written:    summary.Written,
			Abandoned:  summary.Abandoned,
		}); err != nil {
			logger.Warn("failed to finish ledger run", "error", err)
		}
	}

	logger.Info("generation finished",
		"run_id", runID,
		"dispatched", summary.Dispatched,
		"written", summary.Written,
		"abandoned", summary.Abandoned,
		"interrupted", summary.Interrupted,
		"duration", summary.Duration.Round(time.Millisecond))
	if summary.LedgerErrors > 0 {
		logger.Warn("ledger missed some outcomes; a ledger resume may regenerate them",
			"count", summary.LedgerErrors)
	}
	if summary.Interrupted {
		logger.Warn("stopped before every sample was dispatched; rerun to resume",
			"remaining", len(plan.Pending)-summary.Dispatched)
	}
	return nil
}

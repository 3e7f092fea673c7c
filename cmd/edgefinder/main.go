package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vodeneev/mlbedge/internal/calculator"
	"github.com/Vodeneev/mlbedge/internal/notify"
	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/export"
	"github.com/Vodeneev/mlbedge/internal/pkg/health"
	"github.com/Vodeneev/mlbedge/internal/pkg/logging"
	"github.com/Vodeneev/mlbedge/internal/pkg/metrics"
	"github.com/Vodeneev/mlbedge/internal/pkg/schedule"
	"github.com/Vodeneev/mlbedge/internal/pkg/storage"
	"github.com/Vodeneev/mlbedge/internal/quotes"
	"github.com/Vodeneev/mlbedge/internal/resolver"
	"github.com/Vodeneev/mlbedge/internal/simulator"
)

func main() {
	var (
		configPath string
		once       bool
		csvPath    string
		jsonPath   string
	)

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file (can be set via CONFIG_PATH env var); empty uses defaults")
	flag.BoolVar(&once, "once", false, "Evaluate the slate once, print the report and exit")
	flag.StringVar(&csvPath, "csv", "", "With -once: also write the reports as CSV to this file")
	flag.StringVar(&jsonPath, "json", "", "With -once: also write the run as JSON to this file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	closeLogs := func() error { return nil }
	if _, c, err := logging.SetupLogger(&cfg.Logging, "edgefinder"); err != nil {
		log.Printf("Warning: failed to setup logging: %v, continuing with default logger", err)
	} else {
		closeLogs = c
	}

	err = run(cfg, once, csvPath, jsonPath)
	if err != nil {
		slog.Error("Edge finder failed", "error", err)
	}
	_ = closeLogs()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool, csvPath, jsonPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	contests, err := schedule.FromConfig(cfg.Calculator.ScheduleFile)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	simOpts := []simulator.Option{simulator.WithTrials(cfg.Simulator.Trials)}
	if cfg.Simulator.Seed != nil {
		simOpts = append(simOpts, simulator.WithSeed(*cfg.Simulator.Seed))
	}
	sim := simulator.New(simOpts...)

	res, err := resolver.New(
		resolver.WithAliases(cfg.Resolver.Aliases),
		resolver.WithThreshold(cfg.Resolver.Threshold),
		resolver.WithMetric(cfg.Resolver.Metric),
	)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	provider, err := quotes.NewProvider(cfg.Quotes)
	if err != nil {
		return err
	}

	notifier := notify.FromConfig(cfg.Notify)
	defer func() {
		if err := notifier.Close(); err != nil {
			slog.Warn("Error closing notifiers", "error", err)
		}
	}()

	m := metrics.New()

	var store storage.ReportStorage
	if cfg.Postgres.DSN != "" {
		pg, err := storage.NewPostgresReportStorage(&cfg.Postgres)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
		}
		store = pg
		defer func() {
			if err := pg.Close(); err != nil {
				slog.Warn("Error closing PostgreSQL storage", "error", err)
			}
		}()
	}

	engine, err := calculator.NewEngine(sim, res, notifier, m, calculator.EngineConfig{
		Threshold:        cfg.Edge.Threshold,
		Parallelism:      cfg.Calculator.Parallelism,
		NotifyTimeout:    cfg.Notify.Timeout,
		AlertCooldown:    cfg.Calculator.AlertCooldown,
		AlertMinIncrease: cfg.Calculator.AlertMinIncrease,
	})
	if err != nil {
		return err
	}

	svc := calculator.NewService(engine, provider, store, m, contests, calculator.ServiceConfig{
		QuoteTimeout: cfg.Quotes.Timeout,
		Interval:     cfg.Calculator.Interval,
		AsyncEnabled: cfg.Calculator.AsyncEnabled,
	})

	slog.Info("Edge finder configured",
		"contests", len(contests),
		"trials", sim.Trials(),
		"seeded", sim.Seeded(),
		"edge_threshold", cfg.Edge.Threshold,
		"quotes_provider", cfg.Quotes.Provider,
		"notifiers", notifier.Len(),
		"storage", store != nil)

	if once {
		return runOnce(ctx, svc, csvPath, jsonPath)
	}

	mux := health.NewMux(m.Handler())
	svc.RegisterHTTP(mux)
	if _, err := health.Run(ctx, cfg.Server.Addr, "edgefinder", mux, cfg.Server.ReadHeaderTimeout); err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	if !cfg.Calculator.AsyncEnabled {
		// serve the single run until shutdown; /async/start may still begin periodic runs
		<-ctx.Done()
		svc.StopAsync()
	}
	slog.Info("Edge finder stopped")
	return nil
}

func runOnce(ctx context.Context, svc *calculator.Service, csvPath, jsonPath string) error {
	run, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}

	exp := export.NewExporter()
	if err := exp.WriteTable(os.Stdout, run.Reports); err != nil {
		return fmt.Errorf("failed to write report table: %w", err)
	}
	exp.PrintSummary(os.Stdout, exp.ExportReports(run.ID, run.Reports))
	if run.QuoteError != "" {
		fmt.Fprintf(os.Stdout, "Quotes unavailable: %s\n", run.QuoteError)
	}

	if csvPath != "" {
		data, err := exp.ExportToCSV(run.Reports)
		if err != nil {
			return err
		}
		if err := os.WriteFile(csvPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", csvPath, err)
		}
	}
	if jsonPath != "" {
		data, err := exp.ExportToJSON(run.ID, run.Reports)
		if err != nil {
			return err
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", jsonPath, err)
		}
	}

	slog.Info("Run exported", "run_id", run.ID, "duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return nil
}

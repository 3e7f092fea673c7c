package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/mlbedge/internal/pkg/metrics"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
	"github.com/Vodeneev/mlbedge/internal/pkg/storage"
	"github.com/Vodeneev/mlbedge/internal/quotes"
)

const (
	storeTimeout = 10 * time.Second
	runTimeout   = 2 * time.Minute
)

// ServiceConfig holds the scheduling settings of a Service.
type ServiceConfig struct {
	QuoteTimeout time.Duration
	Interval     time.Duration
	AsyncEnabled bool
}

// Service runs the edge finder over a fixed slate: fetch quotes, evaluate,
// archive. It can run once or on a ticker.
type Service struct {
	engine   *Engine
	provider quotes.Provider
	store    storage.ReportStorage
	metrics  *metrics.EdgeMetrics
	contests []models.Contest
	cfg      ServiceConfig

	runSlot chan struct{}
	lastMu  sync.RWMutex
	lastRun *models.Run

	asyncMu      sync.RWMutex
	asyncParent  context.Context
	asyncCancel  context.CancelFunc
	asyncTicker  *time.Ticker
	asyncStopped bool
	asyncDone    chan struct{}
}

// NewService builds a Service. store and m may be nil.
func NewService(engine *Engine, provider quotes.Provider, store storage.ReportStorage, m *metrics.EdgeMetrics, contests []models.Contest, cfg ServiceConfig) *Service {
	return &Service{
		engine:       engine,
		provider:     provider,
		store:        store,
		metrics:      m,
		contests:     contests,
		cfg:          cfg,
		runSlot:      make(chan struct{}, 1),
		asyncParent:  context.Background(),
		asyncStopped: true,
	}
}

// ErrRunInProgress is returned by TryRunOnce while another run is in flight.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunOnce performs a single pass over the slate. Runs are serialized; waiting
// for an in-flight run is bounded by ctx, and a nil run is returned if ctx
// ends first.
//
// A quote failure is recorded on the run and evaluation proceeds with no
// market prices. An archive failure is logged. The returned error is non-nil
// only when ctx ended before the run finished; the partial run is still
// returned.
func (s *Service) RunOnce(ctx context.Context) (*models.Run, error) {
	select {
	case s.runSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for in-flight run: %w", ctx.Err())
	}
	defer func() { <-s.runSlot }()
	return s.run(ctx)
}

// TryRunOnce is RunOnce that fails with ErrRunInProgress instead of waiting.
func (s *Service) TryRunOnce(ctx context.Context) (*models.Run, error) {
	select {
	case s.runSlot <- struct{}{}:
	default:
		return nil, ErrRunInProgress
	}
	defer func() { <-s.runSlot }()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	slog.Info("Edge run started", "run_id", run.ID, "contests", len(s.contests))

	cat, warnings, err := quotes.LoadCatalogue(ctx, s.provider, s.cfg.QuoteTimeout)
	if err != nil {
		run.QuoteError = err.Error()
		s.metrics.QuoteFetchFailed()
	}
	for _, w := range warnings {
		run.QuoteWarnings = append(run.QuoteWarnings, w.String())
	}
	run.CatalogueEntries = cat.Len()
	s.metrics.SetCatalogueEntries(cat.Len())

	run.Reports = s.engine.Evaluate(ctx, s.contests, cat)
	run.FinishedAt = time.Now().UTC()

	status := "ok"
	if run.QuoteError != "" {
		status = "degraded"
	}
	if ctx.Err() != nil {
		status = "cancelled"
	}
	s.metrics.ObserveRun(status, run.FinishedAt.Sub(run.StartedAt))

	if s.store != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		if err := s.store.StoreRun(storeCtx, run); err != nil {
			slog.Error("Failed to archive run", "run_id", run.ID, "error", err)
		}
		cancel()
	}

	s.lastMu.Lock()
	s.lastRun = run
	s.lastMu.Unlock()

	slog.Info("Edge run finished",
		"run_id", run.ID,
		"status", status,
		"catalogue_entries", run.CatalogueEntries,
		"alerts", run.AlertCount(),
		"duration", run.FinishedAt.Sub(run.StartedAt))

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("run %s interrupted: %w", run.ID, err)
	}
	return run, nil
}

// LastRun returns the most recent finished run, or nil.
func (s *Service) LastRun() *models.Run {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastRun
}

// Start runs on the configured interval until ctx is done. With async
// disabled it performs a single run. Periodic runs started later through
// StartAsync also end with ctx.
func (s *Service) Start(ctx context.Context) error {
	s.asyncMu.Lock()
	s.asyncParent = ctx
	s.asyncMu.Unlock()

	if !s.cfg.AsyncEnabled {
		_, err := s.RunOnce(ctx)
		return err
	}

	if err := s.StartAsync(); err != nil {
		return err
	}
	<-ctx.Done()
	s.StopAsync()
	return nil
}

// StartAsync starts periodic runs. The first run happens immediately.
func (s *Service) StartAsync() error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("run interval must be positive, got %s", s.cfg.Interval)
	}

	s.asyncMu.Lock()
	defer s.asyncMu.Unlock()

	if s.asyncTicker != nil && !s.asyncStopped {
		return errors.New("async processing already running")
	}
	if err := s.asyncParent.Err(); err != nil {
		return fmt.Errorf("service is shutting down: %w", err)
	}

	ctx, cancel := context.WithCancel(s.asyncParent)
	s.asyncCancel = cancel
	s.asyncTicker = time.NewTicker(s.cfg.Interval)
	s.asyncStopped = false
	s.asyncDone = make(chan struct{})

	go s.runAsync(ctx, s.asyncTicker, s.asyncDone)

	slog.Info("Async edge runs started", "interval", s.cfg.Interval)
	return nil
}

// StopAsync stops periodic runs and waits for an in-flight run to return.
func (s *Service) StopAsync() {
	s.asyncMu.Lock()
	if s.asyncTicker == nil || s.asyncStopped {
		s.asyncMu.Unlock()
		return
	}
	s.asyncTicker.Stop()
	s.asyncCancel()
	s.asyncStopped = true
	done := s.asyncDone
	s.asyncMu.Unlock()

	<-done
	slog.Info("Async edge runs stopped")
}

// IsAsyncRunning reports whether periodic runs are active.
func (s *Service) IsAsyncRunning() bool {
	s.asyncMu.RLock()
	defer s.asyncMu.RUnlock()
	return s.asyncTicker != nil && !s.asyncStopped
}

func (s *Service) runAsync(ctx context.Context, ticker *time.Ticker, done chan struct{}) {
	defer close(done)

	s.runScheduled(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Service) runScheduled(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	if _, err := s.RunOnce(runCtx); err != nil {
		slog.Warn("Scheduled run incomplete", "error", err)
	}
}

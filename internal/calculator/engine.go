package calculator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Vodeneev/mlbedge/internal/edge"
	"github.com/Vodeneev/mlbedge/internal/notify"
	"github.com/Vodeneev/mlbedge/internal/pkg/metrics"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
	"github.com/Vodeneev/mlbedge/internal/quotes"
	"github.com/Vodeneev/mlbedge/internal/resolver"
	"github.com/Vodeneev/mlbedge/internal/simulator"
)

const (
	defaultParallelism   = 4
	defaultNotifyTimeout = 10 * time.Second
)

// EngineConfig holds the tunables of an Engine.
type EngineConfig struct {
	Threshold        float64
	Parallelism      int
	NotifyTimeout    time.Duration
	AlertCooldown    time.Duration
	AlertMinIncrease float64
}

// Engine evaluates a slate of contests against a quote catalogue.
// It is safe for concurrent use.
type Engine struct {
	sim      *simulator.Simulator
	resolver *resolver.Resolver
	notifier notify.Notifier
	metrics  *metrics.EdgeMetrics
	alerts   *alertTracker

	threshold     float64
	parallelism   int
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewEngine builds an Engine. notifier and m may be nil.
func NewEngine(sim *simulator.Simulator, res *resolver.Resolver, notifier notify.Notifier, m *metrics.EdgeMetrics, cfg EngineConfig) (*Engine, error) {
	if sim == nil || res == nil {
		return nil, fmt.Errorf("simulator and resolver are required")
	}
	if err := edge.ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}

	return &Engine{
		sim:           sim,
		resolver:      res,
		notifier:      notifier,
		metrics:       m,
		alerts:        newAlertTracker(cfg.AlertCooldown, cfg.AlertMinIncrease),
		threshold:     cfg.Threshold,
		parallelism:   cfg.Parallelism,
		notifyTimeout: cfg.NotifyTimeout,
		now:           time.Now,
	}, nil
}

// Evaluate returns one report per contest, in input order.
//
// Contests are independent: a contest that cannot be simulated gets a report
// with Error set and the rest of the slate is still evaluated. Each contest
// draws from its own random stream, so a seeded simulator yields the same
// reports regardless of parallelism.
func (e *Engine) Evaluate(ctx context.Context, contests []models.Contest, cat *quotes.Catalogue) []models.ContestReport {
	if cat == nil {
		cat = quotes.Empty()
	}
	reports := make([]models.ContestReport, len(contests))

	base := e.sim
	if !base.Seeded() {
		base = base.Fork(uint64(e.now().UnixNano()))
	}
	e.alerts.prune(e.now())

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, c := range contests {
		g.Go(func() error {
			reports[i] = e.evaluateContest(ctx, base.Fork(uint64(i)), c, cat)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

func (e *Engine) evaluateContest(ctx context.Context, sim *simulator.Simulator, c models.Contest, cat *quotes.Catalogue) (report models.ContestReport) {
	report = models.ContestReport{
		Matchup:  c.Matchup(),
		Home:     c.Home,
		Away:     c.Away,
		HomeRate: c.HomeRate,
		AwayRate: c.AwayRate,
		HomeSide: models.SideReport{Identity: c.Home},
		AwaySide: models.SideReport{Identity: c.Away},
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Contest evaluation panicked", "matchup", report.Matchup, "panic", r)
			report.Error = fmt.Sprintf("internal error: %v", r)
			e.metrics.ObserveContest("invalid")
		}
	}()

	if err := ctx.Err(); err != nil {
		report.Error = err.Error()
		e.metrics.ObserveContest("invalid")
		return report
	}

	res, err := sim.Simulate(c.HomeRate, c.AwayRate)
	if err != nil {
		slog.Warn("Contest skipped", "matchup", report.Matchup, "error", err)
		report.Error = err.Error()
		e.metrics.ObserveContest("invalid")
		return report
	}
	report.PHome, report.PAway = res.PHome, res.PAway
	report.HomeSide.FairPrice = res.FairHome
	report.AwaySide.FairPrice = res.FairAway

	mq := e.resolver.MatchContest(c, cat)
	if mq.Found {
		key := mq.Key
		report.MarketKey = &key
		report.Bookmaker = mq.Bookmaker
	}

	id := c.ID()
	e.evaluateSide(ctx, id, report.Matchup, models.SideHome, &report.HomeSide, mq.HomePrice)
	e.evaluateSide(ctx, id, report.Matchup, models.SideAway, &report.AwaySide, mq.AwayPrice)

	if report.HomeSide.Matched || report.AwaySide.Matched {
		e.metrics.ObserveContest("matched")
	} else {
		e.metrics.ObserveContest("unmatched")
	}
	return report
}

func (e *Engine) evaluateSide(ctx context.Context, contestID, matchup string, side models.Side, sr *models.SideReport, market *int) {
	sr.MarketPrice = market
	sr.Matched = market != nil

	a := edge.Evaluate(sr.FairPrice, market, e.threshold)
	sr.Edge, sr.Alert = a.Edge, a.Alert
	if a.Edge != nil {
		e.metrics.ObserveEdge(string(side), *a.Edge, a.Alert)
	}
	if !a.Alert || e.notifier == nil {
		return
	}

	key := contestID + "|" + string(side)
	now := e.now()
	if !e.alerts.shouldSend(key, *a.Edge, now) {
		sr.Suppressed = true
		slog.Debug("Alert suppressed, sent recently", "matchup", matchup, "side", side, "edge", *a.Edge)
		return
	}

	alert := models.Alert{
		ID:          uuid.NewString(),
		Matchup:     matchup,
		Side:        side,
		Team:        sr.Identity,
		Edge:        *a.Edge,
		FairPrice:   sr.FairPrice,
		MarketPrice: *market,
		CreatedAt:   now.UTC(),
	}
	err := e.dispatch(ctx, alert)
	if notify.IsPending(err) {
		slog.Info("Alert queued, delivery not yet confirmed", "matchup", matchup, "side", side, "alert_id", alert.ID)
		sr.NotifyPending = true
		e.alerts.record(key, *a.Edge, now)
		return
	}
	if err != nil {
		slog.Warn("Alert delivery failed", "matchup", matchup, "side", side, "error", err)
		sr.NotifyError = err.Error()
		e.metrics.NotifyFailed()
		return
	}
	sr.Notified = true
	e.alerts.record(key, *a.Edge, now)
}

// dispatch sends one alert under the notify timeout. A panicking channel is
// reported as an error.
func (e *Engine) dispatch(ctx context.Context, alert models.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()
	return e.notifier.Notify(ctx, alert)
}

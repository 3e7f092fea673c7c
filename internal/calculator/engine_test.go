package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Vodeneev/mlbedge/internal/notify"
	"github.com/Vodeneev/mlbedge/internal/pkg/metrics"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
	"github.com/Vodeneev/mlbedge/internal/quotes"
	"github.com/Vodeneev/mlbedge/internal/resolver"
	"github.com/Vodeneev/mlbedge/internal/simulator"
)

type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	panic bool
	wait  bool // queue the alert, then block until ctx ends
	got   []models.Alert
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, a models.Alert) error {
	if r.panic {
		panic("channel exploded")
	}
	r.mu.Lock()
	r.got = append(r.got, a)
	r.mu.Unlock()
	if r.wait {
		<-ctx.Done()
		return fmt.Errorf("recording: %w", notify.ErrDeliveryPending)
	}
	return r.err
}

func (r *recordingNotifier) alerts() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert(nil), r.got...)
}

func price(v float64) *float64 { return &v }

// bostonCatalogue lists BOS as home at -110 and NYY at +100.
func bostonCatalogue(t *testing.T) *quotes.Catalogue {
	t.Helper()
	cat, warnings := quotes.Build([]models.RawQuoteRecord{{
		ID:       "e1",
		HomeTeam: "Boston Red Sox",
		AwayTeam: "New York Yankees",
		Bookmakers: []models.Bookmaker{{
			Key: "draftkings",
			Markets: []models.Market{{Key: models.MarketH2H, Outcomes: []models.Outcome{
				{Name: "Boston Red Sox", Price: price(-110)},
				{Name: "New York Yankees", Price: price(100)},
			}}},
		}},
	}})
	if len(warnings) != 0 {
		t.Fatalf("unexpected catalogue warnings: %v", warnings)
	}
	return cat
}

func newTestEngine(t *testing.T, n *recordingNotifier, cfg EngineConfig) *Engine {
	t.Helper()
	res, err := resolver.New()
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.03
	}
	var notifier notify.Notifier
	if n != nil {
		notifier = n
	}
	e, err := NewEngine(simulator.New(simulator.WithTrials(20000), simulator.WithSeed(42)), res, notifier, metrics.New(), cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

var bosNYY = models.Contest{Home: "BOS", Away: "NYY", HomeRate: 5.0, AwayRate: 4.0}

func TestEngine_MatchesAndAlerts(t *testing.T) {
	n := &recordingNotifier{}
	e := newTestEngine(t, n, EngineConfig{})

	reports := e.Evaluate(context.Background(), []models.Contest{bosNYY}, bostonCatalogue(t))
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	r := reports[0]
	if !r.Valid() {
		t.Fatalf("unexpected error: %s", r.Error)
	}
	if r.Matchup != "NYY @ BOS" {
		t.Errorf("Matchup = %q", r.Matchup)
	}
	// P(Poisson(5) > Poisson(4)) = 0.565
	if math.Abs(r.PHome-0.565) > 0.015 {
		t.Errorf("PHome = %.4f, want about 0.565", r.PHome)
	}
	if math.Abs(r.PHome+r.PAway-1) > 1e-12 {
		t.Errorf("PHome+PAway = %v, want 1", r.PHome+r.PAway)
	}
	if r.MarketKey == nil || r.MarketKey.Home != "Boston Red Sox" || r.Bookmaker != "draftkings" {
		t.Errorf("market key = %+v, bookmaker %q", r.MarketKey, r.Bookmaker)
	}

	if !r.HomeSide.Matched || *r.HomeSide.MarketPrice != -110 {
		t.Errorf("home side = %+v, want matched at -110", r.HomeSide)
	}
	if !r.HomeSide.Alert || !r.HomeSide.Notified {
		t.Errorf("home side = %+v, want notified alert", r.HomeSide)
	}
	if !r.AwaySide.Matched || r.AwaySide.Alert {
		t.Errorf("away side = %+v, want matched without alert", r.AwaySide)
	}

	sent := n.alerts()
	if len(sent) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(sent))
	}
	if sent[0].Side != models.SideHome || sent[0].Team != "BOS" || sent[0].MarketPrice != -110 || sent[0].ID == "" {
		t.Errorf("alert = %+v", sent[0])
	}
}

func TestEngine_InvalidContestIsIsolated(t *testing.T) {
	e := newTestEngine(t, &recordingNotifier{}, EngineConfig{})
	contests := []models.Contest{
		{Home: "LAD", Away: "SF", HomeRate: -1, AwayRate: 4},
		bosNYY,
		{Home: "CHC", Away: "STL", HomeRate: 4.2, AwayRate: math.NaN()},
	}

	reports := e.Evaluate(context.Background(), contests, bostonCatalogue(t))
	if len(reports) != len(contests) {
		t.Fatalf("got %d reports, want %d", len(reports), len(contests))
	}
	for i, c := range contests {
		if reports[i].Matchup != c.Matchup() {
			t.Errorf("report %d is %q, want %q", i, reports[i].Matchup, c.Matchup())
		}
	}
	if reports[0].Valid() || reports[2].Valid() {
		t.Error("invalid rates must produce error reports")
	}
	if !reports[1].Valid() || !reports[1].HomeSide.Matched {
		t.Errorf("valid contest affected: %+v", reports[1])
	}
}

func TestEngine_NotifyFailureKeepsAssessment(t *testing.T) {
	tests := []struct {
		name     string
		notifier *recordingNotifier
	}{
		{"error", &recordingNotifier{err: errors.New("smtp down")}},
		{"panic", &recordingNotifier{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.notifier, EngineConfig{})
			r := e.Evaluate(context.Background(), []models.Contest{bosNYY}, bostonCatalogue(t))[0]

			if !r.Valid() {
				t.Fatalf("report error = %q", r.Error)
			}
			if !r.HomeSide.Alert || r.HomeSide.Edge == nil {
				t.Errorf("assessment changed: %+v", r.HomeSide)
			}
			if r.HomeSide.Notified || r.HomeSide.NotifyError == "" {
				t.Errorf("home side = %+v, want notify error", r.HomeSide)
			}
		})
	}
}

func TestEngine_NoCatalogue(t *testing.T) {
	n := &recordingNotifier{}
	e := newTestEngine(t, n, EngineConfig{})

	r := e.Evaluate(context.Background(), []models.Contest{bosNYY}, nil)[0]
	if !r.Valid() {
		t.Fatalf("report error = %q", r.Error)
	}
	if r.HomeSide.Matched || r.AwaySide.Matched || r.HomeSide.Edge != nil || r.MarketKey != nil {
		t.Errorf("report = %+v, want unmatched without edges", r)
	}
	if len(n.alerts()) != 0 {
		t.Error("unmatched contest must not alert")
	}
}

func TestEngine_SeededResultsIndependentOfParallelism(t *testing.T) {
	contests := []models.Contest{
		bosNYY,
		{Home: "LAD", Away: "SF", HomeRate: 4.8, AwayRate: 3.9},
		{Home: "CHC", Away: "STL", HomeRate: 4.1, AwayRate: 4.4},
		{Home: "HOU", Away: "TEX", HomeRate: 4.6, AwayRate: 4.6},
	}
	serial := newTestEngine(t, nil, EngineConfig{Parallelism: 1}).Evaluate(context.Background(), contests, nil)
	parallel := newTestEngine(t, nil, EngineConfig{Parallelism: 8}).Evaluate(context.Background(), contests, nil)

	for i := range contests {
		if serial[i].PHome != parallel[i].PHome {
			t.Errorf("contest %d: PHome %v (serial) != %v (parallel)", i, serial[i].PHome, parallel[i].PHome)
		}
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newTestEngine(t, nil, EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := e.Evaluate(ctx, []models.Contest{bosNYY, bosNYY}, nil)
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	for _, r := range reports {
		if r.Valid() {
			t.Error("cancelled run must mark contests with an error")
		}
	}
}

func TestEngine_RepeatAlertsSuppressed(t *testing.T) {
	n := &recordingNotifier{}
	e := newTestEngine(t, n, EngineConfig{AlertCooldown: time.Hour, AlertMinIncrease: 0.5})
	now := time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	cat := bostonCatalogue(t)

	first := e.Evaluate(context.Background(), []models.Contest{bosNYY}, cat)[0]
	now = now.Add(10 * time.Minute)
	second := e.Evaluate(context.Background(), []models.Contest{bosNYY}, cat)[0]

	if !first.HomeSide.Notified {
		t.Fatalf("first run not notified: %+v", first.HomeSide)
	}
	if !second.HomeSide.Alert || second.HomeSide.Notified || !second.HomeSide.Suppressed {
		t.Errorf("second run = %+v, want suppressed alert", second.HomeSide)
	}
	if got := len(n.alerts()); got != 1 {
		t.Errorf("sent %d alerts, want 1", got)
	}

	now = now.Add(time.Hour)
	third := e.Evaluate(context.Background(), []models.Contest{bosNYY}, cat)[0]
	if !third.HomeSide.Notified {
		t.Errorf("alert after cooldown not sent: %+v", third.HomeSide)
	}
}

func TestEngine_PendingDeliveryCountsAsSent(t *testing.T) {
	n := &recordingNotifier{wait: true}
	e := newTestEngine(t, n, EngineConfig{NotifyTimeout: 20 * time.Millisecond, AlertCooldown: time.Hour})
	now := time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	cat := bostonCatalogue(t)

	first := e.Evaluate(context.Background(), []models.Contest{bosNYY}, cat)[0]
	if !first.HomeSide.NotifyPending || first.HomeSide.NotifyError != "" || first.HomeSide.Notified {
		t.Fatalf("first run = %+v, want pending without error", first.HomeSide)
	}

	now = now.Add(5 * time.Minute)
	second := e.Evaluate(context.Background(), []models.Contest{bosNYY}, cat)[0]
	if !second.HomeSide.Suppressed {
		t.Errorf("second run = %+v, want suppressed", second.HomeSide)
	}
	if got := len(n.alerts()); got != 1 {
		t.Errorf("queued %d alerts, want 1", got)
	}
}

func TestNewEngine_RejectsBadThreshold(t *testing.T) {
	res, _ := resolver.New()
	if _, err := NewEngine(simulator.New(), res, nil, nil, EngineConfig{Threshold: -0.1}); err == nil {
		t.Error("expected threshold error")
	}
}

package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
	"github.com/Vodeneev/mlbedge/internal/pkg/storage"
)

type stubProvider struct {
	records []models.RawQuoteRecord
	err     error
	entered chan struct{} // signalled when a fetch starts
	block   chan struct{} // fetch waits until closed
}

func (p *stubProvider) FetchRecords(ctx context.Context) ([]models.RawQuoteRecord, error) {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.records, p.err
}

type memoryStore struct {
	mu   sync.Mutex
	runs []*models.Run
	err  error
}

func (m *memoryStore) StoreRun(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) RecentAlerts(ctx context.Context, limit int) ([]storage.StoredAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.StoredAlert
	for i := len(m.runs) - 1; i >= 0; i-- {
		for _, r := range m.runs[i].Reports {
			if r.HomeSide.Alert && len(out) < limit {
				out = append(out, storage.StoredAlert{RunID: m.runs[i].ID, Matchup: r.Matchup, Side: string(models.SideHome), Edge: *r.HomeSide.Edge})
			}
		}
	}
	return out, nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func bostonRecords() []models.RawQuoteRecord {
	return []models.RawQuoteRecord{{
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
	}}
}

func newTestService(t *testing.T, p *stubProvider, store storage.ReportStorage, cfg ServiceConfig) *Service {
	t.Helper()
	e := newTestEngine(t, &recordingNotifier{}, EngineConfig{})
	return NewService(e, p, store, nil, []models.Contest{bosNYY}, cfg)
}

func TestService_RunOnce(t *testing.T) {
	store := &memoryStore{}
	s := newTestService(t, &stubProvider{records: bostonRecords()}, store, ServiceConfig{QuoteTimeout: time.Second})

	run, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.ID == "" || run.CatalogueEntries != 1 || run.QuoteError != "" {
		t.Errorf("run = %+v", run)
	}
	if len(run.Reports) != 1 || run.AlertCount() != 1 {
		t.Errorf("reports = %d, alerts = %d, want 1 and 1", len(run.Reports), run.AlertCount())
	}
	if store.stored() != 1 {
		t.Errorf("stored %d runs, want 1", store.stored())
	}
	if s.LastRun() != run {
		t.Error("LastRun does not return the finished run")
	}
}

func TestService_RunOnce_QuoteFailure(t *testing.T) {
	s := newTestService(t, &stubProvider{err: errors.New("odds api: 503")}, nil, ServiceConfig{})

	run, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !strings.Contains(run.QuoteError, "503") {
		t.Errorf("QuoteError = %q", run.QuoteError)
	}
	if len(run.Reports) != 1 || !run.Reports[0].Valid() {
		t.Fatalf("reports = %+v", run.Reports)
	}
	if run.Reports[0].HomeSide.Matched || run.AlertCount() != 0 {
		t.Error("contest must be unmatched without quotes")
	}
}

func TestService_RunOnce_StoreFailureKeepsRun(t *testing.T) {
	s := newTestService(t, &stubProvider{records: bostonRecords()}, &memoryStore{err: errors.New("db down")}, ServiceConfig{})

	run, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if s.LastRun() != run {
		t.Error("run must be kept when archiving fails")
	}
}

func TestService_RunInFlight(t *testing.T) {
	p := &stubProvider{records: bostonRecords(), entered: make(chan struct{}, 1), block: make(chan struct{})}
	s := newTestService(t, p, nil, ServiceConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-p.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if run, err := s.RunOnce(ctx); run != nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunOnce while busy = %v, %v; want deadline exceeded", run, err)
	}
	if _, err := s.TryRunOnce(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("TryRunOnce while busy = %v, want ErrRunInProgress", err)
	}

	mux := http.NewServeMux()
	s.RegisterHTTP(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("POST /run while busy = %d, want 409", rec.Code)
	}

	close(p.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := s.TryRunOnce(context.Background()); err != nil {
		t.Errorf("TryRunOnce after run finished: %v", err)
	}
}

func TestService_AsyncStartStop(t *testing.T) {
	store := &memoryStore{}
	s := newTestService(t, &stubProvider{records: bostonRecords()}, store, ServiceConfig{Interval: 20 * time.Millisecond, AsyncEnabled: true})

	if err := s.StartAsync(); err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	if !s.IsAsyncRunning() {
		t.Error("IsAsyncRunning = false after start")
	}
	if err := s.StartAsync(); err == nil {
		t.Error("second StartAsync should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for store.stored() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.StopAsync()

	if store.stored() < 2 {
		t.Errorf("stored %d runs, want at least 2", store.stored())
	}
	if s.IsAsyncRunning() {
		t.Error("IsAsyncRunning = true after stop")
	}
}

func TestService_StartAsyncRequiresInterval(t *testing.T) {
	s := newTestService(t, &stubProvider{}, nil, ServiceConfig{})
	if err := s.StartAsync(); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestService_StartReturnsOnCancel(t *testing.T) {
	s := newTestService(t, &stubProvider{records: bostonRecords()}, nil, ServiceConfig{Interval: time.Hour, AsyncEnabled: true})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.LastRun() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if s.LastRun() == nil {
		t.Error("first run did not happen immediately")
	}
}

func TestHandlers(t *testing.T) {
	store := &memoryStore{}
	s := newTestService(t, &stubProvider{records: bostonRecords()}, store, ServiceConfig{Interval: time.Hour})
	mux := http.NewServeMux()
	s.RegisterHTTP(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/reports")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /reports before a run = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/run")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /run = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/run", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var run models.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	resp.Body.Close()
	if len(run.Reports) != 1 || run.Reports[0].Matchup != "NYY @ BOS" {
		t.Errorf("run reports = %+v", run.Reports)
	}

	resp, err = http.Get(srv.URL + "/alerts/recent?limit=10")
	if err != nil {
		t.Fatal(err)
	}
	var alerts struct {
		Alerts []storage.StoredAlert `json:"alerts"`
		Count  int                   `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	resp.Body.Close()
	if alerts.Count != 1 || alerts.Alerts[0].RunID != run.ID {
		t.Errorf("recent alerts = %+v", alerts)
	}

	resp, err = http.Get(srv.URL + "/alerts/recent?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if status["last_run_id"] != run.ID || status["async_running"] != false {
		t.Errorf("status = %v", status)
	}
}

func TestHandlers_AsyncControl(t *testing.T) {
	s := newTestService(t, &stubProvider{}, nil, ServiceConfig{Interval: time.Hour})
	mux := http.NewServeMux()
	s.RegisterHTTP(mux)
	defer s.StopAsync()

	post := func(path string) map[string]string {
		t.Helper()
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return body
	}

	steps := []struct {
		path, want string
	}{
		{"/async/stop", "already_stopped"},
		{"/async/start", "started"},
		{"/async/start", "already_running"},
		{"/async/stop", "stopped"},
	}
	for _, st := range steps {
		if got := post(st.path)["status"]; got != st.want {
			t.Errorf("POST %s status = %q, want %q", st.path, got, st.want)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/recent", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("recent alerts without storage = %d, want 503", rec.Code)
	}
}

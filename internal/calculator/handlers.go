package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// RegisterHTTP registers edge finder endpoints onto mux.
func (s *Service) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/alerts/recent", s.handleRecentAlerts)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/async/stop", s.handleStopAsync)
	mux.HandleFunc("/async/start", s.handleStartAsync)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed, use " + method})
	return false
}

// handleReports returns the latest run.
func (s *Service) handleReports(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	run := s.LastRun()
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRun triggers a run and returns it. The run is detached from the
// client connection. A request arriving during another run gets 409.
func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), runTimeout)
	defer cancel()

	run, err := s.TryRunOnce(ctx)
	if errors.Is(err, ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": err.Error(), "run": run})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Service) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "report storage is not configured"})
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAlertLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	alerts, err := s.store.RecentAlerts(ctx, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// handleStatus returns service status information.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":           "ok",
		"contests":         len(s.contests),
		"async_running":    s.IsAsyncRunning(),
		"storage_enabled":  s.store != nil,
		"interval_seconds": s.cfg.Interval.Seconds(),
	}
	if run := s.LastRun(); run != nil {
		status["last_run_id"] = run.ID
		status["last_run_at"] = run.FinishedAt.Format(time.RFC3339)
		status["last_run_alerts"] = run.AlertCount()
		if run.QuoteError != "" {
			status["status"] = "degraded"
			status["error"] = run.QuoteError
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleStopAsync(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.IsAsyncRunning() {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "already_stopped",
			"message": "Async processing is not running",
		})
		return
	}

	s.StopAsync()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "stopped",
		"message": "Async processing stopped successfully",
	})
}

func (s *Service) handleStartAsync(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.IsAsyncRunning() {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "already_running",
			"message": "Async processing is already running",
		})
		return
	}

	if err := s.StartAsync(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "failed to start async processing",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": "Async processing started successfully",
	})
}

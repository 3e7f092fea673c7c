package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func sampleRun() models.Run {
	return models.Run{
		ID:               "3f2c9a1e-0000-4000-8000-000000000000",
		FinishedAt:       time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC),
		CatalogueEntries: 2,
		Reports: []models.ContestReport{
			{
				Matchup:  "NYY @ BOS",
				HomeSide: models.SideReport{Identity: "BOS", FairPrice: -130, MarketPrice: ptr(-110), Matched: true, Edge: ptr(0.154), Alert: true},
				AwaySide: models.SideReport{Identity: "NYY", FairPrice: 130, MarketPrice: ptr(100), Matched: true, Edge: ptr(-0.23)},
			},
			{
				Matchup:  "SF @ LAD",
				HomeSide: models.SideReport{Identity: "LAD", FairPrice: -150},
				AwaySide: models.SideReport{Identity: "SF", FairPrice: 150, MarketPrice: ptr(180), Matched: true, Edge: ptr(0.2), Alert: true},
			},
		},
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text      string
		wantCmd   string
		wantLimit int
	}{
		{"/alerts 10", "alerts", 10},
		{"/report", "report", defaultLimit},
		{"report 3", "report", 3},
		{"/run@edgebot 2", "run", 2},
		{"/alerts 500", "alerts", defaultLimit},
		{"/alerts abc", "alerts", defaultLimit},
		{"   ", "", 0},
	}
	for _, tt := range tests {
		cmd, limit := parseCommand(tt.text)
		if cmd != tt.wantCmd || limit != tt.wantLimit {
			t.Errorf("parseCommand(%q) = %q, %d, want %q, %d", tt.text, cmd, limit, tt.wantCmd, tt.wantLimit)
		}
	}
}

func TestFormatRun_SortsByEdge(t *testing.T) {
	run := sampleRun()
	out := formatRun(&run, 5)

	sf := strings.Index(out, "SF @ LAD")
	bos := strings.Index(out, "NYY @ BOS")
	if sf < 0 || bos < 0 || sf > bos {
		t.Errorf("sides not ordered by edge:\n%s", out)
	}
	for _, want := range []string{"Run 3f2c9a1e", "market +180, edge 20.0%", "Fair -130.0, market -110"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if out := formatRun(&run, 1); strings.Contains(out, "NYY @ BOS") {
		t.Errorf("limit not applied:\n%s", out)
	}
}

func TestFormatRun_NoValue(t *testing.T) {
	run := models.Run{ID: "r1", QuoteError: "odds api: 503"}
	out := formatRun(&run, 5)
	if !strings.Contains(out, "Quotes unavailable: odds api: 503") || !strings.Contains(out, "No value sides found.") {
		t.Errorf("output = %q", out)
	}
}

func TestEdgeClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sampleRun())
	})
	mux.HandleFunc("/alerts/recent", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("limit = %q, want 3", r.URL.Query().Get("limit"))
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"report storage is not configured"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newEdgeClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	out, err := c.latestReport(ctx, 5)
	if err != nil {
		t.Fatalf("latestReport: %v", err)
	}
	if !strings.Contains(out, "SF @ LAD") {
		t.Errorf("report = %q", out)
	}

	if _, err := c.recentAlerts(ctx, 3); err == nil || !strings.Contains(err.Error(), "storage is not configured") {
		t.Errorf("recentAlerts err = %v, want service error", err)
	}
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("0123456789\n", 10)
	chunks := splitMessage(text, 25)
	if strings.Join(chunks, "") != text {
		t.Error("chunks do not reassemble the message")
	}
	for _, c := range chunks {
		if len(c) > 25 {
			t.Errorf("chunk of %d bytes exceeds limit", len(c))
		}
	}
}

func TestParseUserIDs(t *testing.T) {
	got := parseUserIDs("1, 2,x,3")
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("parseUserIDs = %v", got)
	}
	if parseUserIDs("") != nil {
		t.Error("empty input should give no IDs")
	}
}

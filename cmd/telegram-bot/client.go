package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Vodeneev/mlbedge/internal/pkg/export"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
	"github.com/Vodeneev/mlbedge/internal/pkg/storage"
)

const maxMessageLen = 4000

// edgeClient reads the edge finder HTTP API and renders replies as plain text.
type edgeClient struct {
	baseURL    string
	httpClient *http.Client
}

func newEdgeClient(baseURL string, timeout time.Duration) *edgeClient {
	return &edgeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *edgeClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach edge finder: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s", e.Error)
		}
		return fmt.Errorf("edge finder returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *edgeClient) latestReport(ctx context.Context, limit int) (string, error) {
	var run models.Run
	if err := c.do(ctx, http.MethodGet, "/reports", &run); err != nil {
		return "", err
	}
	return formatRun(&run, limit), nil
}

func (c *edgeClient) triggerRun(ctx context.Context, limit int) (string, error) {
	var run models.Run
	if err := c.do(ctx, http.MethodPost, "/run", &run); err != nil {
		return "", err
	}
	return formatRun(&run, limit), nil
}

func (c *edgeClient) recentAlerts(ctx context.Context, limit int) (string, error) {
	var resp struct {
		Alerts []storage.StoredAlert `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/alerts/recent?limit=%d", limit), &resp); err != nil {
		return "", err
	}
	if len(resp.Alerts) == 0 {
		return "No alerts recorded yet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent alerts (%d):\n", len(resp.Alerts))
	for i, a := range resp.Alerts {
		fmt.Fprintf(&b, "\n%d. %s, %s side\n   Fair %s, market %s, edge %s\n   %s",
			i+1, a.Matchup, a.Side, export.FormatMoneyline(a.FairPrice), export.FormatPrice(&a.MarketPrice), export.FormatEdge(&a.Edge),
			a.CreatedAt.UTC().Format("02.01 15:04 MST"))
	}
	return b.String(), nil
}

func (c *edgeClient) status(ctx context.Context) (string, error) {
	var st map[string]any
	if err := c.do(ctx, http.MethodGet, "/status", &st); err != nil {
		return "", err
	}
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Edge finder status:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, st[k])
	}
	return b.String(), nil
}

type valueSide struct {
	matchup string
	side    models.SideReport
	label   models.Side
}

// formatRun lists the alerting sides of run, biggest edge first.
func formatRun(run *models.Run, limit int) string {
	var sides []valueSide
	for _, r := range run.Reports {
		if r.HomeSide.Alert {
			sides = append(sides, valueSide{r.Matchup, r.HomeSide, models.SideHome})
		}
		if r.AwaySide.Alert {
			sides = append(sides, valueSide{r.Matchup, r.AwaySide, models.SideAway})
		}
	}
	sort.SliceStable(sides, func(i, j int) bool { return *sides[i].side.Edge > *sides[j].side.Edge })

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s at %s: %d contests, %d quotes.\n",
		shortID(run.ID), run.FinishedAt.UTC().Format("15:04 MST"), len(run.Reports), run.CatalogueEntries)
	if run.QuoteError != "" {
		fmt.Fprintf(&b, "Quotes unavailable: %s\n", run.QuoteError)
	}
	if len(sides) == 0 {
		b.WriteString("No value sides found.")
		return b.String()
	}
	if len(sides) > limit {
		sides = sides[:limit]
	}
	for i, s := range sides {
		fmt.Fprintf(&b, "\n%d. %s: %s (%s)\n   Fair %s, market %s, edge %s",
			i+1, s.matchup, s.side.Identity, s.label,
			export.FormatMoneyline(s.side.FairPrice), export.FormatPrice(s.side.MarketPrice), export.FormatEdge(s.side.Edge))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// splitMessage cuts text on line boundaries into chunks of at most n bytes.
func splitMessage(text string, n int) []string {
	if len(text) <= n {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if cur.Len()+len(line) > n && cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		for len(line) > n {
			chunks = append(chunks, line[:n])
			line = line[n:]
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

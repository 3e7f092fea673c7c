package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// Unmatched is written wherever a market price or edge is absent.
const Unmatched = "N/A"

// Export is the file format of one run.
type Export struct {
	RunID         string                 `json:"run_id,omitempty"`
	Timestamp     string                 `json:"timestamp"`
	TotalContests int                    `json:"total_contests"`
	Alerts        int                    `json:"alerts"`
	Unmatched     int                    `json:"unmatched"`
	Invalid       int                    `json:"invalid"`
	Contests      []models.ContestReport `json:"contests"`
}

// Exporter renders contest reports as JSON, CSV or a console table.
type Exporter struct {
	now func() time.Time
}

func NewExporter() *Exporter {
	return &Exporter{now: time.Now}
}

// ExportReports wraps reports with run totals.
func (e *Exporter) ExportReports(runID string, reports []models.ContestReport) *Export {
	export := &Export{
		RunID:         runID,
		Timestamp:     e.now().UTC().Format(time.RFC3339),
		TotalContests: len(reports),
		Contests:      reports,
	}
	if export.Contests == nil {
		export.Contests = []models.ContestReport{}
	}
	for _, r := range reports {
		switch {
		case !r.Valid():
			export.Invalid++
		case !r.HomeSide.Matched && !r.AwaySide.Matched:
			export.Unmatched++
		}
		if r.HomeSide.Alert {
			export.Alerts++
		}
		if r.AwaySide.Alert {
			export.Alerts++
		}
	}
	return export
}

func (e *Exporter) ExportToJSON(runID string, reports []models.ContestReport) ([]byte, error) {
	return json.MarshalIndent(e.ExportReports(runID, reports), "", "  ")
}

var csvHeader = []string{
	"Matchup",
	"P(Home Win)",
	"Fair ML (Home)",
	"Fair ML (Away)",
	"Book ML (Home)",
	"Book ML (Away)",
	"Edge (Home)",
	"Edge (Away)",
	"Alert (Home)",
	"Alert (Away)",
	"Error",
}

// ExportToCSV writes one row per contest. Absent prices and edges are N/A.
func (e *Exporter) ExportToCSV(reports []models.ContestReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range reports {
		if err := w.Write(row(r)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", r.Matchup, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func row(r models.ContestReport) []string {
	if !r.Valid() {
		return []string{r.Matchup, Unmatched, Unmatched, Unmatched, Unmatched, Unmatched, Unmatched, Unmatched, "false", "false", r.Error}
	}
	return []string{
		r.Matchup,
		strconv.FormatFloat(r.PHome, 'f', 3, 64),
		FormatMoneyline(r.HomeSide.FairPrice),
		FormatMoneyline(r.AwaySide.FairPrice),
		FormatPrice(r.HomeSide.MarketPrice),
		FormatPrice(r.AwaySide.MarketPrice),
		FormatEdge(r.HomeSide.Edge),
		FormatEdge(r.AwaySide.Edge),
		strconv.FormatBool(r.HomeSide.Alert),
		strconv.FormatBool(r.AwaySide.Alert),
		"",
	}
}

// FormatMoneyline renders a fair price with an explicit sign for underdogs.
func FormatMoneyline(p float64) string {
	s := strconv.FormatFloat(p, 'f', 1, 64)
	if p > 0 {
		return "+" + s
	}
	return s
}

// FormatPrice renders an observed American price with its sign, or Unmatched.
func FormatPrice(p *int) string {
	if p == nil {
		return Unmatched
	}
	if *p > 0 {
		return "+" + strconv.Itoa(*p)
	}
	return strconv.Itoa(*p)
}

// FormatEdge renders an edge as a percentage with one decimal.
func FormatEdge(edge *float64) string {
	if edge == nil {
		return Unmatched
	}
	return fmt.Sprintf("%.1f%%", *edge*100)
}

// WriteTable prints the console table of a run.
func (e *Exporter) WriteTable(w io.Writer, reports []models.ContestReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCHUP\tP(HOME)\tFAIR H\tFAIR A\tBOOK H\tBOOK A\tEDGE H\tEDGE A\tALERT")
	for _, r := range reports {
		if !r.Valid() {
			fmt.Fprintf(tw, "%s\tinvalid: %s\t\t\t\t\t\t\t\n", r.Matchup, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Matchup, r.PHome,
			FormatMoneyline(r.HomeSide.FairPrice), FormatMoneyline(r.AwaySide.FairPrice),
			FormatPrice(r.HomeSide.MarketPrice), FormatPrice(r.AwaySide.MarketPrice),
			FormatEdge(r.HomeSide.Edge), FormatEdge(r.AwaySide.Edge),
			alertLabel(r))
	}
	return tw.Flush()
}

func alertLabel(r models.ContestReport) string {
	switch {
	case r.HomeSide.Alert && r.AwaySide.Alert:
		return "HOME+AWAY"
	case r.HomeSide.Alert:
		return "HOME"
	case r.AwaySide.Alert:
		return "AWAY"
	default:
		return "-"
	}
}

// PrintSummary prints run totals.
func (e *Exporter) PrintSummary(w io.Writer, export *Export) {
	fmt.Fprintf(w, "=== Run Summary ===\n")
	if export.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", export.RunID)
	}
	fmt.Fprintf(w, "Timestamp: %s\n", export.Timestamp)
	fmt.Fprintf(w, "Total Contests: %d\n", export.TotalContests)
	fmt.Fprintf(w, "Unmatched: %d\n", export.Unmatched)
	fmt.Fprintf(w, "Invalid: %d\n", export.Invalid)
	fmt.Fprintf(w, "Alerts: %d\n", export.Alerts)
}

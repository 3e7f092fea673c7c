package models

import "time"

// Run is one pass over the slate: the quote fetch plus every contest report.
type Run struct {
	ID               string          `json:"id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	CatalogueEntries int             `json:"catalogue_entries"`
	QuoteError       string          `json:"quote_error,omitempty"`
	QuoteWarnings    []string        `json:"quote_warnings,omitempty"`
	Reports          []ContestReport `json:"reports"`
}

// AlertCount returns the number of alerting sides in the run.
func (r *Run) AlertCount() int {
	n := 0
	for _, rep := range r.Reports {
		if rep.HomeSide.Alert {
			n++
		}
		if rep.AwaySide.Alert {
			n++
		}
	}
	return n
}

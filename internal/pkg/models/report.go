package models

import "time"

// Side identifies home or away within a contest.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// EdgeAssessment is the evaluator output for one side. Edge is nil when it
// could not be computed.
type EdgeAssessment struct {
	Edge  *float64 `json:"edge,omitempty"`
	Alert bool     `json:"alert"`
}

// SideReport is the per-side part of a ContestReport.
type SideReport struct {
	Identity      string   `json:"identity"`
	FairPrice     float64  `json:"fair_price"`
	MarketPrice   *int     `json:"market_price,omitempty"`
	Matched       bool     `json:"matched"`
	Edge          *float64 `json:"edge,omitempty"`
	Alert         bool     `json:"alert"`
	Notified      bool     `json:"notified,omitempty"`
	NotifyPending bool     `json:"notify_pending,omitempty"` // queued by a channel, not yet confirmed
	Suppressed    bool     `json:"suppressed,omitempty"`     // alert already sent recently, not re-sent
	NotifyError   string   `json:"notify_error,omitempty"`
}

// ContestReport is the structured result emitted for every contest of a run.
type ContestReport struct {
	Matchup   string     `json:"matchup"`
	Home      string     `json:"home"`
	Away      string     `json:"away"`
	HomeRate  float64    `json:"home_rate"`
	AwayRate  float64    `json:"away_rate"`
	PHome     float64    `json:"p_home"`
	PAway     float64    `json:"p_away"`
	HomeSide  SideReport `json:"home_side"`
	AwaySide  SideReport `json:"away_side"`
	MarketKey *QuoteKey  `json:"market_key,omitempty"`
	Bookmaker string     `json:"bookmaker,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Valid reports whether the contest could be simulated.
func (r ContestReport) Valid() bool {
	return r.Error == ""
}

// Alert is a notification request for one alerting side.
type Alert struct {
	ID          string    `json:"id"`
	Matchup     string    `json:"matchup"`
	Side        Side      `json:"side"`
	Team        string    `json:"team"`
	Edge        float64   `json:"edge"`
	FairPrice   float64   `json:"fair_price"`
	MarketPrice int       `json:"market_price"`
	CreatedAt   time.Time `json:"created_at"`
}

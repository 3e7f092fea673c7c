package models

import (
	"fmt"
	"time"
)

// Contest is one two-sided matchup with each side's expected scoring rate.
type Contest struct {
	Home      string    `json:"home" yaml:"home"`
	Away      string    `json:"away" yaml:"away"`
	HomeRate  float64   `json:"home_rate" yaml:"home_exp"`
	AwayRate  float64   `json:"away_rate" yaml:"away_exp"`
	StartTime time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
}

// Matchup returns the display label "AWAY @ HOME".
func (c Contest) Matchup() string {
	return fmt.Sprintf("%s @ %s", c.Away, c.Home)
}

// SimulationResult is the Monte-Carlo estimate for one contest.
// PAway is always 1 - PHome, so ties are folded into the away side.
type SimulationResult struct {
	PHome    float64 `json:"p_home"`
	PAway    float64 `json:"p_away"`
	FairHome float64 `json:"fair_home"`
	FairAway float64 `json:"fair_away"`
	Trials   int     `json:"trials"`
	HomeWins int     `json:"home_wins"`
}

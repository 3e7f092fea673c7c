package models

import "time"

// MarketH2H is the provider key of the head-to-head (moneyline) market.
const MarketH2H = "h2h"

// RawQuoteRecord is one event as delivered by the quotes provider.
type RawQuoteRecord struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Teams        []string    `json:"teams,omitempty"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker is one price source inside a provider record.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market is a set of outcome prices of one market type (h2h, spreads, totals).
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome is a single priced side. Price is nil when the provider sent null.
type Outcome struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

// QuoteKey is the ordered (home, away) pair in provider spelling.
type QuoteKey struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// Quote holds observed American moneyline prices for one catalogue entry.
type Quote struct {
	HomePrice *int   `json:"home_price,omitempty"`
	AwayPrice *int   `json:"away_price,omitempty"`
	Bookmaker string `json:"bookmaker,omitempty"`
}

// MatchedQuote is the catalogue entry resolved for a contest.
// Found is false when nothing could be matched. Reversed means the provider
// lists the contest with home and away swapped; prices are already oriented
// to the contest.
type MatchedQuote struct {
	Key       QuoteKey `json:"key"`
	Found     bool     `json:"found"`
	Reversed  bool     `json:"reversed,omitempty"`
	HomePrice *int     `json:"home_price,omitempty"`
	AwayPrice *int     `json:"away_price,omitempty"`
	Bookmaker string   `json:"bookmaker,omitempty"`
}

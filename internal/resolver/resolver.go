// Package resolver maps local team identities onto the spellings used in the
// quote catalogue: exact lookup first, then similarity ranking.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
	"github.com/Vodeneev/mlbedge/internal/quotes"
)

const (
	DefaultThreshold = 0.85
	DefaultMetric    = "levenshtein"
)

var (
	ErrInvalidThreshold = errors.New("similarity threshold must be in (0, 1]")
	ErrUnknownMetric    = errors.New("unknown similarity metric")
)

// Match is a resolved candidate. Score is 1 for exact hits.
type Match struct {
	Identity string  `json:"identity"`
	Score    float64 `json:"score"`
	Exact    bool    `json:"exact"`
}

type Resolver struct {
	aliases   map[string]string
	threshold float64
	metric    strutil.StringMetric
}

type Option func(*Resolver) error

// WithAliases adds or overrides abbreviation expansions. Keys are matched
// case-insensitively.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) error {
		for k, v := range aliases {
			r.aliases[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		return nil
	}
}

func WithThreshold(t float64) Option {
	return func(r *Resolver) error {
		if !(t > 0 && t <= 1) {
			return fmt.Errorf("%w: %v", ErrInvalidThreshold, t)
		}
		r.threshold = t
		return nil
	}
}

// WithMetric selects the similarity metric: levenshtein, jaro-winkler or
// sorensen-dice.
func WithMetric(name string) Option {
	return func(r *Resolver) error {
		m, err := metricByName(name)
		if err != nil {
			return err
		}
		r.metric = m
		return nil
	}
}

func metricByName(name string) (strutil.StringMetric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DefaultMetric:
		return metrics.NewLevenshtein(), nil
	case "jaro-winkler", "jarowinkler":
		return metrics.NewJaroWinkler(), nil
	case "sorensen-dice", "dice":
		return metrics.NewSorensenDice(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

// New creates a resolver with the MLB abbreviation table, DefaultThreshold and
// the Levenshtein metric, then applies opts.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		aliases:   DefaultAliases(),
		threshold: DefaultThreshold,
		metric:    metrics.NewLevenshtein(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Resolver) Threshold() float64 { return r.threshold }

// Expand returns the alias expansion of local, or "" if it has none.
func (r *Resolver) Expand(local string) string {
	if v, ok := r.aliases[local]; ok {
		return v
	}
	return r.aliases[strings.ToUpper(strings.TrimSpace(local))]
}

// Resolve finds local among candidates.
//
// An exact hit on local or its expansion is returned without scoring. Otherwise
// the candidate with the best similarity (ties go to the lexicographically
// smallest) is accepted if it reaches the threshold. No match is not an error.
func (r *Resolver) Resolve(local string, candidates []string) (Match, bool) {
	names := []string{local}
	if exp := r.Expand(local); exp != "" && exp != local {
		names = append(names, exp)
	}

	for _, name := range names {
		for _, c := range candidates {
			if c == name {
				return Match{Identity: c, Score: 1, Exact: true}, true
			}
		}
	}

	normNames := make([]string, 0, len(names))
	for _, name := range names {
		if n := normalizeName(name); n != "" {
			normNames = append(normNames, n)
		}
	}
	if len(normNames) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, c := range candidates {
		nc := normalizeName(c)
		if nc == "" {
			continue
		}
		score := 0.0
		for _, n := range normNames {
			if s := strutil.Similarity(n, nc, r.metric); s > score {
				score = s
			}
		}
		if !found || score > best.Score || (score == best.Score && c < best.Identity) {
			best = Match{Identity: c, Score: score}
			found = true
		}
	}

	if !found || best.Score < r.threshold {
		return Match{}, false
	}
	return best, true
}

// MatchContest resolves both sides of c against the catalogue and returns the
// entry with prices oriented to the contest's home and away.
//
// Both sides must resolve. The pair is looked up as listed and then swapped;
// an entry that shares only one team with the contest is a different game and
// never matches.
func (r *Resolver) MatchContest(c models.Contest, cat *quotes.Catalogue) models.MatchedQuote {
	if cat == nil || cat.Len() == 0 {
		return models.MatchedQuote{}
	}
	candidates := cat.Identities()

	home, homeOK := r.Resolve(c.Home, candidates)
	away, awayOK := r.Resolve(c.Away, candidates)

	// Both sides landing on one spelling cannot name a pair.
	if !homeOK || !awayOK || home.Identity == away.Identity {
		return models.MatchedQuote{}
	}
	if q, ok := cat.Lookup(home.Identity, away.Identity); ok {
		return models.MatchedQuote{
			Key:       models.QuoteKey{Home: home.Identity, Away: away.Identity},
			Found:     true,
			HomePrice: q.HomePrice,
			AwayPrice: q.AwayPrice,
			Bookmaker: q.Bookmaker,
		}
	}
	if q, ok := cat.Lookup(away.Identity, home.Identity); ok {
		return models.MatchedQuote{
			Key:       models.QuoteKey{Home: away.Identity, Away: home.Identity},
			Found:     true,
			Reversed:  true,
			HomePrice: q.AwayPrice,
			AwayPrice: q.HomePrice,
			Bookmaker: q.Bookmaker,
		}
	}
	return models.MatchedQuote{}
}

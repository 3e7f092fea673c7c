// Package quotes builds the read-only quote catalogue from provider records
// and fetches those records from the quotes provider.
package quotes

import (
	"fmt"
	"math"
	"sort"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// Warning describes a provider record that was skipped or partially used.
// Warnings are recoverable: the rest of the catalogue is still built.
type Warning struct {
	RecordID string
	Reason   string
}

func (w Warning) String() string {
	if w.RecordID == "" {
		return w.Reason
	}
	return fmt.Sprintf("record %s: %s", w.RecordID, w.Reason)
}

// Catalogue maps (home, away) provider spellings to observed moneyline prices.
// It is never modified after Build returns.
type Catalogue struct {
	entries    map[models.QuoteKey]models.Quote
	keys       []models.QuoteKey
	identities []string
}

// Empty returns a catalogue with no entries.
func Empty() *Catalogue {
	c, _ := Build(nil)
	return c
}

// Build folds provider records into a catalogue.
//
// Per record, the first bookmaker (in provider order) offering an h2h market
// supplies the prices and the rest are ignored. When two records share a key
// the first one wins.
func Build(records []models.RawQuoteRecord) (*Catalogue, []Warning) {
	c := &Catalogue{
		entries: make(map[models.QuoteKey]models.Quote, len(records)),
	}
	seen := make(map[string]struct{})
	var warnings []Warning

	for _, rec := range records {
		key, ok, reason := recordKey(rec)
		if !ok {
			warnings = append(warnings, Warning{RecordID: rec.ID, Reason: reason})
			continue
		}

		quote, found := firstH2H(rec, key)
		if !found {
			warnings = append(warnings, Warning{RecordID: rec.ID, Reason: fmt.Sprintf("no %s market for %s vs %s", models.MarketH2H, key.Home, key.Away)})
			continue
		}

		if _, dup := c.entries[key]; dup {
			warnings = append(warnings, Warning{RecordID: rec.ID, Reason: fmt.Sprintf("duplicate matchup %s vs %s ignored, keeping first", key.Home, key.Away)})
			continue
		}

		c.entries[key] = quote
		c.keys = append(c.keys, key)
		seen[key.Home] = struct{}{}
		seen[key.Away] = struct{}{}
	}

	c.identities = make([]string, 0, len(seen))
	for id := range seen {
		c.identities = append(c.identities, id)
	}
	sort.Strings(c.identities)

	return c, warnings
}

// recordKey derives the (home, away) key: away is the identity in the
// record's pair that is not the home identity.
func recordKey(rec models.RawQuoteRecord) (models.QuoteKey, bool, string) {
	if rec.HomeTeam == "" {
		return models.QuoteKey{}, false, "missing home team"
	}

	teams := rec.Teams
	if len(teams) == 0 && rec.AwayTeam != "" {
		teams = []string{rec.HomeTeam, rec.AwayTeam}
	}
	if len(teams) != 2 {
		return models.QuoteKey{}, false, fmt.Sprintf("expected 2 teams, got %d", len(teams))
	}
	if teams[0] == teams[1] {
		return models.QuoteKey{}, false, fmt.Sprintf("both teams are %q", teams[0])
	}

	var away string
	switch rec.HomeTeam {
	case teams[0]:
		away = teams[1]
	case teams[1]:
		away = teams[0]
	default:
		return models.QuoteKey{}, false, fmt.Sprintf("home team %q is not one of %q", rec.HomeTeam, teams)
	}
	if away == "" {
		return models.QuoteKey{}, false, "missing away team"
	}

	return models.QuoteKey{Home: rec.HomeTeam, Away: away}, true, ""
}

func firstH2H(rec models.RawQuoteRecord, key models.QuoteKey) (models.Quote, bool) {
	for _, bm := range rec.Bookmakers {
		for _, m := range bm.Markets {
			if m.Key != models.MarketH2H {
				continue
			}
			q := models.Quote{Bookmaker: bm.Key}
			for _, o := range m.Outcomes {
				switch o.Name {
				case key.Home:
					q.HomePrice = americanPrice(o.Price)
				case key.Away:
					q.AwayPrice = americanPrice(o.Price)
				}
			}
			return q, true
		}
	}
	return models.Quote{}, false
}

func americanPrice(p *float64) *int {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := int(math.Round(*p))
	return &v
}

// Lookup returns the quote stored under the exact (home, away) key.
func (c *Catalogue) Lookup(home, away string) (models.Quote, bool) {
	q, ok := c.entries[models.QuoteKey{Home: home, Away: away}]
	return q, ok
}

// Identities returns every team spelling in the catalogue, sorted.
func (c *Catalogue) Identities() []string {
	return append([]string(nil), c.identities...)
}

// Keys returns the catalogue keys in insertion order.
func (c *Catalogue) Keys() []models.QuoteKey {
	return append([]models.QuoteKey(nil), c.keys...)
}

// Len returns the number of entries.
func (c *Catalogue) Len() int {
	return len(c.entries)
}

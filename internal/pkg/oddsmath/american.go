// Package oddsmath converts between win probabilities and American moneyline prices.
package oddsmath

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinProbability bounds probabilities away from 0 and 1 before pricing.
// A probability of exactly 0 or 1 has no finite moneyline.
const MinProbability = 1e-4

// ClampProbability limits p to [MinProbability, 1-MinProbability].
func ClampProbability(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0.5
	case p < MinProbability:
		return MinProbability
	case p > 1-MinProbability:
		return 1 - MinProbability
	}
	return p
}

// ProbabilityToMoneyline returns the fair American price for win probability p,
// rounded to one decimal place.
// p > 0.5 is a favorite (negative price); p <= 0.5 is an underdog (positive price).
// 0.5 -> +100.0, 0.6 -> -150.0, 0.4 -> +150.0
func ProbabilityToMoneyline(p float64) float64 {
	p = ClampProbability(p)
	if p > 0.5 {
		return round1(-100 * p / (1 - p))
	}
	return round1(100 * (1 - p) / p)
}

// MoneylineToProbability is the inverse of ProbabilityToMoneyline
// (no vig removal).
// -150 -> 0.6, +150 -> 0.4
func MoneylineToProbability(price float64) (float64, error) {
	switch {
	case price <= -100:
		return -price / (-price + 100), nil
	case price >= 100:
		return 100 / (price + 100), nil
	}
	return 0, fmt.Errorf("invalid American price %v: must be <= -100 or >= 100", price)
}

// AmericanToImpliedProbability converts an integer American price to its
// implied probability.
func AmericanToImpliedProbability(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}
	return MoneylineToProbability(float64(american))
}

func round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// Package edge compares a market moneyline with the model's fair moneyline.
package edge

import (
	"errors"
	"fmt"
	"math"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

var ErrInvalidThreshold = errors.New("edge threshold must be a non-negative number")

// ValidateThreshold rejects negative, NaN and infinite thresholds.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// Evaluate returns the signed relative deviation of marketPrice from fairPrice,
// (market - fair) / |fair|, and whether it reaches threshold.
//
// A missing market price or a zero fair price leaves the edge absent and never
// alerts. Evaluate has no side effects.
func Evaluate(fairPrice float64, marketPrice *int, threshold float64) models.EdgeAssessment {
	if marketPrice == nil || fairPrice == 0 || math.IsNaN(fairPrice) || math.IsInf(fairPrice, 0) {
		return models.EdgeAssessment{}
	}
	e := (float64(*marketPrice) - fairPrice) / math.Abs(fairPrice)
	return models.EdgeAssessment{Edge: &e, Alert: e >= threshold}
}

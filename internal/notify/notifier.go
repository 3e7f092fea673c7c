// Package notify delivers edge alerts to operators. Every channel implements
// Notifier; Multi fans an alert out to all configured channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// ErrDeliveryPending means the channel accepted the alert but could not
// confirm delivery before the context ended. The alert is still sent.
var ErrDeliveryPending = errors.New("delivery pending")

// IsPending reports whether err only says that delivery is still in progress.
// A joined error counts as pending when every part of it is.
func IsPending(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !IsPending(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, ErrDeliveryPending)
}

// Notifier delivers one alert. A returned error means this channel did not
// deliver; it never affects the computed assessment.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
	Name() string
}

// Multi sends each alert to every channel. A failing channel does not stop
// delivery to the rest; failures are joined into the returned error.
type Multi struct {
	notifiers []Notifier
}

// NewMulti skips nil notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of channels.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Notify(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			if errors.Is(err, ErrDeliveryPending) {
				slog.Info("Alert queued, delivery pending", "channel", n.Name(), "alert_id", alert.ID)
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				continue
			}
			slog.Error("Alert delivery failed", "channel", n.Name(), "alert_id", alert.ID, "matchup", alert.Matchup, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		slog.Debug("Alert delivered", "channel", n.Name(), "alert_id", alert.ID)
	}
	return errors.Join(errs...)
}

// Close releases every channel that holds resources.
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if c, ok := n.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the structured log. Used when no delivery
// channel is configured so alerts are never silently lost.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(ctx context.Context, a models.Alert) error {
	slog.InfoContext(ctx, "Edge alert",
		"alert_id", a.ID,
		"matchup", a.Matchup,
		"side", a.Side,
		"team", a.Team,
		"edge_percent", roundPercent(a.Edge),
		"fair_price", a.FairPrice,
		"market_price", a.MarketPrice)
	return nil
}

// Subject is the one-line alert title.
func Subject(a models.Alert) string {
	return fmt.Sprintf("VALUE ALERT: %s", a.Matchup)
}

// Body is the plain-text alert message.
func Body(a models.Alert) string {
	return fmt.Sprintf("Value alert for %s!\nSide: %s (%s)\nFair: %s, Market: %s, Edge: %.1f%%",
		a.Matchup, a.Team, a.Side, formatFair(a.FairPrice), formatMoneyline(a.MarketPrice), a.Edge*100)
}

func formatMoneyline(p int) string {
	if p > 0 {
		return fmt.Sprintf("+%d", p)
	}
	return fmt.Sprintf("%d", p)
}

func formatFair(p float64) string {
	if p > 0 {
		return fmt.Sprintf("+%.1f", p)
	}
	return fmt.Sprintf("%.1f", p)
}

func roundPercent(edge float64) float64 {
	return math.Round(edge*1000) / 10
}

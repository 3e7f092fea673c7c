package notify

import (
	"log/slog"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
)

// FromConfig builds the enabled channels. A channel that fails to start is
// logged and left out; with no channel left alerts go to the log.
func FromConfig(cfg config.NotifyConfig) *Multi {
	var channels []Notifier

	if cfg.Telegram.Enabled() {
		if tg, err := NewTelegramNotifier(cfg.Telegram); err != nil {
			slog.Error("Telegram notifier disabled", "error", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if cfg.Email.Enabled() {
		channels = append(channels, NewEmailNotifier(cfg.Email))
		slog.Info("Email notifier enabled", "host", cfg.Email.Host, "recipients", len(cfg.Email.To))
	}
	if cfg.Redis.Enabled() {
		if s, err := NewStreamNotifier(cfg.Redis); err != nil {
			slog.Error("Redis stream notifier disabled", "error", err)
		} else {
			channels = append(channels, s)
			slog.Info("Redis stream notifier enabled", "addr", cfg.Redis.Addr, "stream", s.stream)
		}
	}

	if len(channels) == 0 {
		slog.Warn("No notification channel configured, alerts will only be logged")
		channels = append(channels, LogNotifier{})
	}
	return NewMulti(channels...)
}

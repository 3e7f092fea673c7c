package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulator.Trials != 10000 {
		t.Errorf("trials = %d, want 10000", cfg.Simulator.Trials)
	}
	if cfg.Edge.Threshold != 0.03 {
		t.Errorf("edge threshold = %v, want 0.03", cfg.Edge.Threshold)
	}
	if cfg.Resolver.Threshold < 0.6 {
		t.Errorf("resolver threshold = %v, want >= 0.6", cfg.Resolver.Threshold)
	}
	if cfg.Simulator.Seed != nil {
		t.Errorf("seed = %v, want unset", *cfg.Simulator.Seed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
simulator:
  trials: 5000
  seed: 42
edge:
  threshold: 0.05
resolver:
  metric: jaro-winkler
  aliases:
    OAK: Athletics
quotes:
  provider: file
  file: testdata/odds.json
  timeout: 3s
calculator:
  interval: 90s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulator.Trials != 5000 {
		t.Errorf("trials = %d, want 5000", cfg.Simulator.Trials)
	}
	if cfg.Simulator.Seed == nil || *cfg.Simulator.Seed != 42 {
		t.Errorf("seed = %v, want 42", cfg.Simulator.Seed)
	}
	if cfg.Edge.Threshold != 0.05 {
		t.Errorf("threshold = %v, want 0.05", cfg.Edge.Threshold)
	}
	if cfg.Resolver.Aliases["OAK"] != "Athletics" {
		t.Errorf("aliases = %v", cfg.Resolver.Aliases)
	}
	if cfg.Quotes.Timeout != 3*time.Second {
		t.Errorf("quotes timeout = %v, want 3s", cfg.Quotes.Timeout)
	}
	if cfg.Calculator.Interval != 90*time.Second {
		t.Errorf("interval = %v, want 90s", cfg.Calculator.Interval)
	}
	// untouched defaults survive
	if cfg.Resolver.Threshold != 0.85 {
		t.Errorf("resolver threshold = %v, want default 0.85", cfg.Resolver.Threshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ODDS_API_KEY", "k-123")
	t.Setenv("EDGE_THRESHOLD", "0.04")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("SMTP_EMAIL", "bot@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("RECEIVER_EMAIL", "a@example.com, b@example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quotes.APIKey != "k-123" {
		t.Errorf("api key = %q", cfg.Quotes.APIKey)
	}
	if cfg.Edge.Threshold != 0.04 {
		t.Errorf("threshold = %v, want 0.04", cfg.Edge.Threshold)
	}
	if !cfg.Notify.Telegram.Enabled() || cfg.Notify.Telegram.ChatID != -100200 {
		t.Errorf("telegram = %+v", cfg.Notify.Telegram)
	}
	if !cfg.Notify.Email.Enabled() {
		t.Errorf("email should be enabled: %+v", cfg.Notify.Email)
	}
	if cfg.Notify.Email.From != "bot@example.com" || len(cfg.Notify.Email.To) != 2 {
		t.Errorf("email = %+v", cfg.Notify.Email)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("EDGE_THRESHOLD", "three percent")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "EDGE_THRESHOLD") {
		t.Errorf("Load error = %v, want EDGE_THRESHOLD parse error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative threshold", func(c *Config) { c.Edge.Threshold = -0.01 }, "edge.threshold"},
		{"zero trials", func(c *Config) { c.Simulator.Trials = 0 }, "simulator.trials"},
		{"similarity above one", func(c *Config) { c.Resolver.Threshold = 1.5 }, "resolver.threshold"},
		{"similarity zero", func(c *Config) { c.Resolver.Threshold = 0 }, "resolver.threshold"},
		{"file provider without file", func(c *Config) { c.Quotes.Provider = "file" }, "quotes.file"},
		{"unknown provider", func(c *Config) { c.Quotes.Provider = "ftp" }, "quotes.provider"},
		{"parallelism", func(c *Config) { c.Calculator.Parallelism = 0 }, "parallelism"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Edge       EdgeConfig       `yaml:"edge"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Quotes     QuotesConfig     `yaml:"quotes"`
	Notify     NotifyConfig     `yaml:"notify"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Calculator CalculatorConfig `yaml:"calculator"`
	Server     ServerConfig     `yaml:"server"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional JSON log file, in addition to stdout
}

type SimulatorConfig struct {
	Trials int     `yaml:"trials"`
	Seed   *uint64 `yaml:"seed"` // unset: seeded from the clock, results vary run to run
}

type EdgeConfig struct {
	Threshold float64 `yaml:"threshold"` // fraction, 0.03 = 3%
}

type ResolverConfig struct {
	Threshold float64           `yaml:"threshold"` // similarity acceptance ratio in (0, 1]
	Metric    string            `yaml:"metric"`    // levenshtein, jaro-winkler, sorensen-dice
	Aliases   map[string]string `yaml:"aliases"`   // extra local identity -> provider name expansions
}

type QuotesConfig struct {
	Provider        string        `yaml:"provider"` // odds_api or file
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Sport           string        `yaml:"sport"`
	Regions         string        `yaml:"regions"`
	File            string        `yaml:"file"` // provider=file: path to a saved odds payload
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures"` // consecutive failures before the breaker opens
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`  // open -> half-open delay
}

type NotifyConfig struct {
	Timeout  time.Duration  `yaml:"timeout"`
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
	Redis    RedisConfig    `yaml:"redis"`
}

type TelegramConfig struct {
	BotToken     string        `yaml:"bot_token"`
	ChatID       int64         `yaml:"chat_id"`
	SendInterval time.Duration `yaml:"send_interval"` // min gap between messages to one chat
	QueueSize    int           `yaml:"queue_size"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && len(c.To) > 0
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type CalculatorConfig struct {
	Parallelism  int           `yaml:"parallelism"`
	Interval     time.Duration `yaml:"interval"`
	ScheduleFile string        `yaml:"schedule_file"` // empty: built-in slate
	AsyncEnabled bool          `yaml:"async_enabled"` // run on the ticker when serving

	// Repeat alerts for the same contest side are held back
	// for AlertCooldown unless the edge grew by at least AlertMinIncrease.
	AlertCooldown    time.Duration `yaml:"alert_cooldown"`
	AlertMinIncrease float64       `yaml:"alert_min_increase"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// Defaults returns the configuration used when a field is not set in the file.
func Defaults() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Simulator: SimulatorConfig{Trials: 10000},
		Edge:      EdgeConfig{Threshold: 0.03},
		Resolver:  ResolverConfig{Threshold: 0.85, Metric: "levenshtein"},
		Quotes: QuotesConfig{
			Provider:        "odds_api",
			BaseURL:         "https://api.the-odds-api.com",
			Sport:           "baseball_mlb",
			Regions:         "us",
			Timeout:         15 * time.Second,
			BreakerFailures: 3,
			BreakerTimeout:  time.Minute,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
			Telegram: TelegramConfig{
				SendInterval: 2 * time.Second,
				QueueSize:    100,
			},
			Email: EmailConfig{Host: "smtp.gmail.com", Port: 465},
			Redis: RedisConfig{Stream: "alerts.edge"},
		},
		Calculator: CalculatorConfig{
			Parallelism:      4,
			Interval:         5 * time.Minute,
			AsyncEnabled:     true,
			AlertCooldown:    time.Hour,
			AlertMinIncrease: 0.05,
		},
		Server:     ServerConfig{Addr: ":8080", ReadHeaderTimeout: 5 * time.Second},
	}
}

// Load reads the YAML file at configPath on top of Defaults, loads a .env
// file if present and applies environment overrides for secrets and the edge
// threshold. An empty configPath skips the file. The result is not validated.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Quotes.APIKey, "ODDS_API_KEY")
	setStr(&cfg.Notify.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.Email.Username, "SMTP_EMAIL")
	setStr(&cfg.Notify.Email.Password, "SMTP_PASSWORD")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Notify.Redis.Addr, "REDIS_ADDR")

	if v := os.Getenv("SMTP_EMAIL"); v != "" && cfg.Notify.Email.From == "" {
		cfg.Notify.Email.From = v
	}
	if v := os.Getenv("RECEIVER_EMAIL"); v != "" {
		cfg.Notify.Email.To = splitList(v)
	}

	var errs []error
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err))
		} else {
			cfg.Notify.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("EDGE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("EDGE_THRESHOLD: %w", err))
		} else {
			cfg.Edge.Threshold = f
		}
	}
	return errors.Join(errs...)
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the values the calculation depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulator.Trials < 1 {
		errs = append(errs, fmt.Errorf("simulator.trials must be >= 1, got %d", c.Simulator.Trials))
	}
	if math.IsNaN(c.Edge.Threshold) || c.Edge.Threshold < 0 {
		errs = append(errs, fmt.Errorf("edge.threshold must be >= 0, got %v", c.Edge.Threshold))
	}
	if !(c.Resolver.Threshold > 0 && c.Resolver.Threshold <= 1) {
		errs = append(errs, fmt.Errorf("resolver.threshold must be in (0, 1], got %v", c.Resolver.Threshold))
	}
	if c.Calculator.AsyncEnabled && c.Calculator.Interval <= 0 {
		errs = append(errs, fmt.Errorf("calculator.interval must be > 0, got %v", c.Calculator.Interval))
	}
	if c.Calculator.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("calculator.parallelism must be >= 1, got %d", c.Calculator.Parallelism))
	}
	switch c.Quotes.Provider {
	case "odds_api":
		if c.Quotes.BaseURL == "" || c.Quotes.Sport == "" {
			errs = append(errs, fmt.Errorf("quotes.base_url and quotes.sport are required for odds_api"))
		}
	case "file":
		if c.Quotes.File == "" {
			errs = append(errs, fmt.Errorf("quotes.file is required for the file provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown quotes.provider %q", c.Quotes.Provider))
	}
	return errors.Join(errs...)
}

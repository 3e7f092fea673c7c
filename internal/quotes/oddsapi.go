package quotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// OddsAPIClient fetches h2h quotes from The Odds API v4 /sports/{sport}/odds.
type OddsAPIClient struct {
	baseURL    string
	apiKey     string
	sport      string
	regions    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewOddsAPIClient creates a client from the quotes section of the config.
func NewOddsAPIClient(cfg config.QuotesConfig) *OddsAPIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}

	return &OddsAPIClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		sport:      cfg.Sport,
		regions:    cfg.Regions,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "odds-api",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// FetchRecords returns the provider's events for the configured sport.
// While the breaker is open calls fail fast with gobreaker.ErrOpenState.
func (c *OddsAPIClient) FetchRecords(ctx context.Context) ([]models.RawQuoteRecord, error) {
	if c == nil {
		return nil, fmt.Errorf("odds API client is not configured")
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]models.RawQuoteRecord), nil
}

func (c *OddsAPIClient) fetch(ctx context.Context) ([]models.RawQuoteRecord, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v4/sports/%s/odds/", c.baseURL, url.PathEscape(c.sport)))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", models.MarketH2H)
	q.Set("oddsFormat", "american")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch odds: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
		slog.Debug("Odds API quota", "remaining", remaining, "used", resp.Header.Get("x-requests-used"))
	}

	return decodeRecords(resp.Body)
}

// redactURL drops the query string, which carries the API key, from a
// transport error.
func redactURL(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	redacted := uerr.URL
	if u, perr := url.Parse(uerr.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		redacted = u.String()
	} else if i := strings.IndexByte(redacted, '?'); i >= 0 {
		redacted = redacted[:i]
	}
	return &url.Error{Op: uerr.Op, URL: redacted, Err: uerr.Err}
}

package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// Provider returns raw quote records for the current slate.
type Provider interface {
	FetchRecords(ctx context.Context) ([]models.RawQuoteRecord, error)
}

// NewProvider returns the provider selected by cfg.Provider.
func NewProvider(cfg config.QuotesConfig) (Provider, error) {
	switch cfg.Provider {
	case "odds_api":
		return NewOddsAPIClient(cfg), nil
	case "file":
		return &FileProvider{Path: cfg.File}, nil
	default:
		return nil, fmt.Errorf("unknown quotes provider %q", cfg.Provider)
	}
}

// FileProvider reads a saved provider payload (a JSON array of records) from disk.
type FileProvider struct {
	Path string
}

func (p *FileProvider) FetchRecords(ctx context.Context) ([]models.RawQuoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quotes file: %w", err)
	}
	defer f.Close()
	return decodeRecords(f)
}

func decodeRecords(r io.Reader) ([]models.RawQuoteRecord, error) {
	var records []models.RawQuoteRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode quote records: %w", err)
	}
	return records, nil
}

// LoadCatalogue fetches records from p and builds a catalogue.
//
// A provider failure never aborts the run: the returned catalogue is empty and
// err carries the cause so callers can report it. Skipped records are logged.
func LoadCatalogue(ctx context.Context, p Provider, timeout time.Duration) (*Catalogue, []Warning, error) {
	if p == nil {
		return Empty(), nil, fmt.Errorf("no quotes provider configured")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	records, err := p.FetchRecords(ctx)
	if err != nil {
		slog.Warn("Quotes unavailable, continuing without market prices", "error", err)
		return Empty(), nil, err
	}

	cat, warnings := Build(records)
	for _, w := range warnings {
		slog.Warn("Skipped quote record", "record", w.RecordID, "reason", w.Reason)
	}
	slog.Info("Quote catalogue built", "records", len(records), "entries", cat.Len(), "warnings", len(warnings))
	return cat, warnings, nil
}

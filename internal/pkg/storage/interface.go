package storage

import (
	"context"

	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// ReportStorage archives finished runs. It is write-mostly: the service keeps
// the latest run in memory and reads back only for history endpoints.
type ReportStorage interface {
	// StoreRun saves the run and all of its contest reports atomically.
	StoreRun(ctx context.Context, run *models.Run) error

	// RecentAlerts returns alerting sides from the newest runs first.
	RecentAlerts(ctx context.Context, limit int) ([]StoredAlert, error)

	Close() error
}

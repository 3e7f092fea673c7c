package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

var _ ReportStorage = (*PostgresReportStorage)(nil)

// StoredAlert is one alerting side read back from the archive.
type StoredAlert struct {
	RunID       string    `json:"run_id"`
	Matchup     string    `json:"matchup"`
	Side        string    `json:"side"`
	Edge        float64   `json:"edge"`
	FairPrice   float64   `json:"fair_price"`
	MarketPrice int       `json:"market_price"`
	Notified    bool      `json:"notified"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostgresReportStorage stores runs and contest reports in PostgreSQL.
type PostgresReportStorage struct {
	db *sql.DB
}

func NewPostgresReportStorage(cfg *config.PostgresConfig) (*PostgresReportStorage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresReportStorage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL report storage initialized")
	return s, nil
}

func (s *PostgresReportStorage) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS edge_runs (
		id UUID PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		catalogue_entries INTEGER NOT NULL,
		quote_error TEXT NOT NULL DEFAULT '',
		alerts INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS contest_reports (
		id SERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES edge_runs(id) ON DELETE CASCADE,
		matchup VARCHAR(200) NOT NULL,
		home VARCHAR(100) NOT NULL,
		away VARCHAR(100) NOT NULL,
		p_home DOUBLE PRECISION,
		fair_home DOUBLE PRECISION,
		fair_away DOUBLE PRECISION,
		market_home INTEGER,
		market_away INTEGER,
		edge_home DOUBLE PRECISION,
		edge_away DOUBLE PRECISION,
		alert_home BOOLEAN NOT NULL DEFAULT FALSE,
		alert_away BOOLEAN NOT NULL DEFAULT FALSE,
		notified_home BOOLEAN NOT NULL DEFAULT FALSE,
		notified_away BOOLEAN NOT NULL DEFAULT FALSE,
		error TEXT NOT NULL DEFAULT '',
		report JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_contest_reports_run_id ON contest_reports(run_id);
	CREATE INDEX IF NOT EXISTS idx_contest_reports_created_at ON contest_reports(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// StoreRun writes the run row and one row per contest in a transaction.
func (s *PostgresReportStorage) StoreRun(ctx context.Context, run *models.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edge_runs (id, started_at, finished_at, catalogue_entries, quote_error, alerts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.StartedAt, run.FinishedAt, run.CatalogueEntries, run.QuoteError, run.AlertCount())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contest_reports (
			run_id, matchup, home, away, p_home, fair_home, fair_away,
			market_home, market_away, edge_home, edge_away,
			alert_home, alert_away, notified_home, notified_away, error, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`)
	if err != nil {
		return fmt.Errorf("failed to prepare report insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range run.Reports {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal report %s: %w", r.Matchup, err)
		}

		var pHome, fairHome, fairAway sql.NullFloat64
		if r.Valid() {
			pHome = sql.NullFloat64{Float64: r.PHome, Valid: true}
			fairHome = sql.NullFloat64{Float64: r.HomeSide.FairPrice, Valid: true}
			fairAway = sql.NullFloat64{Float64: r.AwaySide.FairPrice, Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			run.ID, r.Matchup, r.Home, r.Away, pHome, fairHome, fairAway,
			nullInt(r.HomeSide.MarketPrice), nullInt(r.AwaySide.MarketPrice),
			nullFloat(r.HomeSide.Edge), nullFloat(r.AwaySide.Edge),
			r.HomeSide.Alert, r.AwaySide.Alert, r.HomeSide.Notified, r.AwaySide.Notified,
			r.Error, payload)
		if err != nil {
			return fmt.Errorf("failed to insert report %s: %w", r.Matchup, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RecentAlerts returns alerting sides, newest first.
func (s *PostgresReportStorage) RecentAlerts(ctx context.Context, limit int) ([]StoredAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, matchup, side, edge, fair, market, notified, created_at FROM (
			SELECT run_id, matchup, 'home' AS side, edge_home AS edge, fair_home AS fair,
			       market_home AS market, notified_home AS notified, created_at
			FROM contest_reports WHERE alert_home
			UNION ALL
			SELECT run_id, matchup, 'away', edge_away, fair_away,
			       market_away, notified_away, created_at
			FROM contest_reports WHERE alert_away
		) a
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []StoredAlert
	for rows.Next() {
		var a StoredAlert
		if err := rows.Scan(&a.RunID, &a.Matchup, &a.Side, &a.Edge, &a.FairPrice, &a.MarketPrice, &a.Notified, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// PruneRuns deletes runs that finished before cutoff together with their
// reports and returns the number of runs removed.
func (s *PostgresReportStorage) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edge_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Truncate empties the archive.
func (s *PostgresReportStorage) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE contest_reports, edge_runs RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate archive: %w", err)
	}
	return nil
}

func (s *PostgresReportStorage) Close() error {
	return s.db.Close()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

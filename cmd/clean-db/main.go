// clean-db removes old runs from the edge finder archive.
// Usage: set POSTGRES_DSN (same as for edgefinder), then run:
//
//	go run ./cmd/clean-db -older-than 720h
//	# or empty the archive
//	go run ./cmd/clean-db -all
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/storage"
)

func main() {
	var (
		configPath string
		olderThan  time.Duration
		all        bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (optional, POSTGRES_DSN env var wins)")
	flag.DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete runs that finished longer ago than this")
	flag.BoolVar(&all, "all", false, "Delete every run")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Postgres.DSN == "" {
		log.Fatal("POSTGRES_DSN environment variable or postgres.dsn is required")
	}
	if !all && olderThan <= 0 {
		log.Fatal("-older-than must be positive")
	}

	s, err := storage.NewPostgresReportStorage(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if all {
		if err := s.Truncate(ctx); err != nil {
			log.Fatalf("Failed to clear archive: %v", err)
		}
		log.Println("Done. Archive cleared.")
		return
	}

	cutoff := time.Now().Add(-olderThan)
	n, err := s.PruneRuns(ctx, cutoff)
	if err != nil {
		log.Fatalf("Failed to prune archive: %v", err)
	}
	log.Printf("Done. Removed %d runs finished before %s.", n, cutoff.UTC().Format(time.RFC3339))
}

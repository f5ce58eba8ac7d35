// Command scorer runs the Persistence Scorer as its own periodic process,
// independent of the ingestion pipeline (spec §4.9: "runs periodically,
// independent of ingestion"). Ticker-loop shape grounded on live.go's
// "Original candle-driven loop".
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmittakarin8/solflow-pipeline/internal/config"
	"github.com/dmittakarin8/solflow-pipeline/internal/metrics"
	"github.com/dmittakarin8/solflow-pipeline/internal/scorer"
	"github.com/dmittakarin8/solflow-pipeline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	writer, err := store.Open(cfg.DBPath, "migrations")
	if err != nil {
		log.Fatalf("store open/migrate: %v", err)
	}
	defer writer.Close()

	s := scorer.New(writer)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	interval := time.Duration(cfg.ScorerIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(ctx, s)
	for {
		select {
		case <-ctx.Done():
			log.Println("scorer shutdown")
			return
		case <-ticker.C:
			runOnce(ctx, s)
		}
	}
}

func runOnce(ctx context.Context, s *scorer.Scorer) {
	start := time.Now()
	n, err := s.Run(ctx, time.Now().Unix())
	if err != nil {
		log.Printf("[ERROR] scorer run failed: %v", err)
		return
	}
	metrics.IncScorerRun()
	log.Printf("scorer pass scored %d mints in %s", n, time.Since(start))
}

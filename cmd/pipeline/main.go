// Command pipeline is the primary entrypoint: it wires config, the
// Pipeline Engine, the ingestion/flush loop, producers, the aggregate
// store, and an HTTP metrics/health server, then runs until interrupted.
//
// Boot sequence mirrors the teacher's main.go:
//   1) config.Load()           – read .env and process environment
//   2) wire store/engine/loop
//   3) start Prometheus /metrics and /healthz on an HTTP server
//   4) run the ingestion/flush loop until SIGINT/SIGTERM
//   5) graceful shutdown of the HTTP server
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmittakarin8/solflow-pipeline/internal/config"
	"github.com/dmittakarin8/solflow-pipeline/internal/engine"
	"github.com/dmittakarin8/solflow-pipeline/internal/enrich"
	"github.com/dmittakarin8/solflow-pipeline/internal/ingest"
	"github.com/dmittakarin8/solflow-pipeline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if !cfg.EnablePipeline {
		log.Println("ENABLE_PIPELINE=false; exiting without starting the ingestion loop")
		return
	}

	writer, err := store.Open(cfg.DBPath, "migrations")
	if err != nil {
		log.Fatalf("store open/migrate: %v", err)
	}
	defer writer.Close()

	eng := engine.New()
	loop := ingest.New(eng, writer, cfg.ChannelBuffer, time.Duration(cfg.FlushIntervalMS)*time.Millisecond)

	overlay, err := config.LoadProducerOverlay(cfg.ProducersFile)
	if err != nil {
		log.Fatalf("load producers file: %v", err)
	}
	producers := wireProducers(cfg, overlay, loop)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("serving metrics on %s/metrics", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, p := range producers {
		p := p
		go func() {
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[WARN] producer exited: %v", err)
			}
		}()
	}

	if cfg.EnableEnrichment {
		enrichClient := enrich.New("")
		go runMetadataRefreshLoop(ctx, eng, enrichClient, writer, time.Duration(cfg.MetadataIntervalMS)*time.Millisecond)
	}

	if err := loop.Run(ctx, func() int64 { return time.Now().Unix() }); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("ingestion loop exited: %v", err)
	}

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

// runMetadataRefreshLoop polls the optional enrichment client for every
// mint the engine currently holds state for, on the spec §6
// METADATA_INTERVAL_MS period, and upserts whatever it finds into
// token_metadata. A fetch or upsert failure is logged and skipped, and a
// mint with no SOL-quoted pair listed is skipped without a log line;
// neither stops the loop from reaching the rest of the active mints.
func runMetadataRefreshLoop(ctx context.Context, eng *engine.Engine, client *enrich.Client, writer *store.Writer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshMetadataOnce(ctx, eng, client, writer)
		}
	}
}

func refreshMetadataOnce(ctx context.Context, eng *engine.Engine, client *enrich.Client, writer *store.Writer) {
	for _, mint := range eng.GetActiveMints() {
		md, ok, err := client.FetchByMint(ctx, mint)
		if err != nil {
			log.Printf("[WARN] enrichment fetch failed for mint=%s: %v", mint, err)
			continue
		}
		if !ok {
			continue
		}

		rec := store.TokenMetadataRecord{
			Mint:         mint,
			Symbol:       md.Symbol,
			Name:         md.Name,
			Decimals:     md.Decimals,
			PriceUSD:     md.PriceUSD,
			LiquidityUSD: md.LiquidityUSD,
			UpdatedAt:    time.Now().Unix(),
		}
		if err := writer.UpsertMetadata(ctx, rec); err != nil {
			log.Printf("[WARN] enrichment upsert failed for mint=%s: %v", mint, err)
		}
	}
}

func wireProducers(cfg config.Config, overlay config.ProducerOverlay, loop *ingest.Loop) []ingest.TradeSource {
	var producers []ingest.TradeSource

	if cfg.ProducerEndpoint != "" {
		producers = append(producers, ingest.NewWSProducer(cfg.ProducerEndpoint, cfg.ProducerAuthToken, loop))
	}
	for _, entry := range overlay.Producers {
		if entry.Endpoint == "" {
			continue
		}
		producers = append(producers, ingest.NewWSProducer(entry.Endpoint, cfg.ProducerAuthToken, loop))
	}

	if len(producers) == 0 {
		log.Println("[WARN] no producer endpoints configured; pipeline will idle with an empty queue")
	}
	return producers
}

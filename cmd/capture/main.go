// Command capture is the legacy, non-core capture CLI spec §6 retains:
// it drains one producer endpoint and writes raw trade events to a flat
// JSONL file or a dedicated sqlite table, selected by --backend. It does
// not run the Pipeline Engine — raw trade persistence and ad-hoc capture
// tooling are both explicitly out of THE CORE (spec §1).
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dmittakarin8/solflow-pipeline/internal/capture"
	"github.com/dmittakarin8/solflow-pipeline/internal/config"
	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

func main() {
	backend := flag.String("backend", "sqlite", "capture backend: sqlite|jsonl")
	endpoint := flag.String("endpoint", "", "producer websocket endpoint to capture from")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		exitf("config: %v", err)
	}
	if *endpoint != "" {
		cfg.ProducerEndpoint = *endpoint
	}
	if cfg.ProducerEndpoint == "" {
		exitf("no producer endpoint configured (-endpoint or PRODUCER_ENDPOINT)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sink func(domain.TradeEvent) error
	var closeSink func() error

	switch *backend {
	case "sqlite":
		sinkDB, err := openCaptureDB(cfg.DBPath)
		if err != nil {
			exitf("open sqlite capture db: %v", err)
		}
		sink = func(e domain.TradeEvent) error { return insertRawTrade(sinkDB, e) }
		closeSink = sinkDB.Close
	case "jsonl":
		w, err := capture.OpenJSONLWriter(cfg.CaptureOutPath)
		if err != nil {
			exitf("open jsonl capture file: %v", err)
		}
		sink = w.WriteTrade
		closeSink = w.Close
	default:
		exitf("unknown backend %q (want sqlite or jsonl)", *backend)
	}
	defer closeSink()

	if err := captureLoop(ctx, cfg.ProducerEndpoint, cfg.ProducerAuthToken, sink); err != nil {
		exitf("capture loop: %v", err)
	}
}

// captureLoop dials endpoint and writes every decoded trade event to sink
// until ctx is canceled, reconnecting with a fixed backoff on read errors.
// Deliberately independent of internal/ingest.Loop: capture never touches
// the Pipeline Engine.
func captureLoop(ctx context.Context, endpoint, authToken string, sink func(domain.TradeEvent) error) error {
	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
		if err != nil {
			log.Printf("[WARN] capture dial failed: %v, retrying in 5s", err)
			if !sleepOrDone(ctx, 5*time.Second) {
				return ctx.Err()
			}
			continue
		}

		readUntilError(ctx, conn, sink)
		conn.Close()

		if !sleepOrDone(ctx, 5*time.Second) {
			return ctx.Err()
		}
	}
}

func readUntilError(ctx context.Context, conn *websocket.Conn, sink func(domain.TradeEvent) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var raw struct {
			Timestamp     int64   `json:"timestamp"`
			Mint          string  `json:"mint"`
			Direction     string  `json:"direction"`
			SolAmount     float64 `json:"sol_amount"`
			TokenAmount   float64 `json:"token_amount"`
			TokenDecimals uint8   `json:"token_decimals"`
			UserAccount   string  `json:"user_account"`
			SourceProgram string  `json:"source_program"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			continue
		}
		event := domain.TradeEvent{
			Timestamp:     raw.Timestamp,
			Mint:          raw.Mint,
			Direction:     domain.NormalizeDirection(raw.Direction),
			SolAmount:     raw.SolAmount,
			TokenAmount:   raw.TokenAmount,
			TokenDecimals: raw.TokenDecimals,
			UserAccount:   raw.UserAccount,
			SourceProgram: raw.SourceProgram,
		}
		if err := sink(event); err != nil {
			log.Printf("[ERROR] capture write failed: %v", err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func openCaptureDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS raw_trade_capture (
		timestamp INTEGER, mint TEXT, direction TEXT, sol_amount REAL,
		token_amount REAL, token_decimals INTEGER, user_account TEXT, source_program TEXT
	);`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func insertRawTrade(db *sql.DB, e domain.TradeEvent) error {
	_, err := db.Exec(`INSERT INTO raw_trade_capture
		(timestamp, mint, direction, sol_amount, token_amount, token_decimals, user_account, source_program)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Mint, e.Direction.String(), e.SolAmount, e.TokenAmount, e.TokenDecimals, e.UserAccount, e.SourceProgram)
	return err
}

func exitf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "capture: "+format+"\n", a...)
	os.Exit(1)
}

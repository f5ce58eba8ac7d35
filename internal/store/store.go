// Package store implements the Aggregate Store Writer: the gorm/sqlite
// persistence layer for token_aggregates, token_signals, mint_blocklist,
// token_metadata, and token_signal_summary.
//
// Adapted from blackholedex's MySQLRecorder (internal/db/transaction_recorder.go):
// same "wrap *gorm.DB in a small struct with one constructor" shape, swapped
// from gorm.io/driver/mysql to gorm.io/driver/sqlite, and from AutoMigrate
// to the versioned-SQL Migrate in migrate.go since this schema needs
// indexes and a blocklist gate AutoMigrate can't express declaratively.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
	"github.com/dmittakarin8/solflow-pipeline/internal/engine"
	"github.com/dmittakarin8/solflow-pipeline/internal/metrics"
)

// Writer is the Aggregate Store Writer. Holds its own BlocklistGate,
// consulted with an index-backed query before every signal write.
type Writer struct {
	db        *gorm.DB
	blocklist *BlocklistGate
}

// Open connects to the sqlite database at dbPath, applies migrations from
// migrationsDir, and returns a ready Writer.
func Open(dbPath, migrationsDir string) (*Writer, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", dbPath, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if err := Migrate(sqlDB, migrationsDir); err != nil {
		return nil, err
	}

	return &Writer{db: db, blocklist: NewBlocklistGate(db)}, nil
}

// GetDB returns the underlying gorm handle for callers (the scorer) that
// need to run their own read queries.
func (w *Writer) GetDB() *gorm.DB { return w.db }

// Close releases the underlying database connection.
func (w *Writer) Close() error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// WriteFlush persists one flush cycle's worth of engine output: an upsert
// per mint's aggregate row (preserving created_at across updates) and an
// insert per newly fired signal, gated by the blocklist. Per spec §4.6/§7,
// a failure on one mint's aggregate or one signal's write is logged and
// skipped; it never aborts the rest of the batch, and aggregate failures
// never abort the signal writes that follow (or vice versa). Implements
// ingest.Sink.
func (w *Writer) WriteFlush(ctx context.Context, results []engine.MintResult) error {
	for _, r := range results {
		if err := w.writeAggregate(ctx, r.Aggregate); err != nil {
			log.Printf("[ERROR] write aggregate for mint=%s failed: %v", r.Aggregate.Mint, err)
			metrics.IncStoreWriteError("aggregate")
		}
		for _, sig := range r.Signals {
			if err := w.writeSignal(ctx, sig); err != nil {
				logSignalWriteError(sig.Mint, err)
			}
		}
	}
	return nil
}

func logSignalWriteError(mint string, err error) {
	var se *StoreError
	if ok := errorsAsStoreError(err, &se); ok {
		switch se.Kind {
		case KindBlocked:
			log.Printf("[DEBUG] signal for mint=%s rejected: blocked", mint)
			return
		case KindInvalidDetails:
			metrics.IncStoreWriteError("invalid_details")
			log.Printf("[ERROR] signal for mint=%s rejected: %v", mint, err)
			return
		}
	}
	metrics.IncStoreWriteError("signal")
	log.Printf("[ERROR] write signal for mint=%s failed: %v", mint, err)
}

func errorsAsStoreError(err error, target **StoreError) bool {
	se, ok := err.(*StoreError)
	if !ok {
		return false
	}
	*target = se
	return true
}

// writeAggregate upserts one mint's row into token_aggregates. On insert,
// created_at is taken from the aggregate's own CreatedAt (set by the engine
// from its metadata cache, or now as a fallback); on conflict, only the
// mutable columns are updated, so created_at is never overwritten by a
// later upsert.
func (w *Writer) writeAggregate(ctx context.Context, agg domain.AggregatedTokenState) error {
	rec := fromAggregate(agg)

	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_trade_timestamp",
			"net_flow_60s_sol", "net_flow_300s_sol", "net_flow_900s_sol",
			"buy_count_60s", "sell_count_60s",
			"buy_count_300s", "sell_count_300s",
			"buy_count_900s", "sell_count_900s",
			"unique_wallets_300s", "bot_trades_300s", "bot_wallets_300s",
			"avg_trade_size_300s_sol", "volume_300s_sol",
			"price_usd", "price_sol", "market_cap_usd",
			"source_program", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return newStoreError(KindWriteFailed, agg.Mint, err)
	}
	return nil
}

// writeSignal inserts one new signal row after checking the blocklist gate
// and validating DetailsJSON is well-formed. The blocklist is consulted
// with sig.CreatedAt as "now" — the flush cycle's timestamp the signal was
// detected at — so a signal fired before a temporary block's expires_at is
// rejected even if the block has lapsed by write time, a signal fired after
// it is written, and a freshly added block takes effect immediately without
// waiting on any cache refresh.
func (w *Writer) writeSignal(ctx context.Context, sig domain.TokenSignal) error {
	blocked, err := w.blocklist.IsBlocked(ctx, sig.Mint, sig.CreatedAt)
	if err != nil {
		return newStoreError(KindWriteFailed, sig.Mint, fmt.Errorf("blocklist check: %w", err))
	}
	if blocked {
		return newStoreError(KindBlocked, sig.Mint, nil)
	}
	if err := validateDetailsJSON(sig.DetailsJSON); err != nil {
		return newStoreError(KindInvalidDetails, sig.Mint, err)
	}

	rec := fromSignal(sig)
	if err := w.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return newStoreError(KindWriteFailed, sig.Mint, err)
	}
	return nil
}

// UpsertMetadata upserts one mint's row into token_metadata, called by the
// optional enrichment ticker. Unlike writeAggregate, there is no created_at
// to preserve: the enrichment client only ever reports a current snapshot.
func (w *Writer) UpsertMetadata(ctx context.Context, rec TokenMetadataRecord) error {
	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol", "name", "decimals", "price_usd", "liquidity_usd", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return newStoreError(KindWriteFailed, rec.Mint, err)
	}
	return nil
}

func validateDetailsJSON(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("details_json must not be empty")
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("details_json is not a valid JSON object: %w", err)
	}
	return nil
}

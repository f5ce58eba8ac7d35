package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
	"github.com/dmittakarin8/solflow-pipeline/internal/engine"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	dir := t.TempDir()

	migrationsDir := filepath.Join(dir, "migrations")
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		t.Fatalf("mkdir migrations: %v", err)
	}
	src, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("read migration fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(migrationsDir, "0001_init.sql"), src, 0o644); err != nil {
		t.Fatalf("write migration fixture: %v", err)
	}

	w, err := Open(filepath.Join(dir, "test.db"), migrationsDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWriteFlushUpsertsAggregateAndInsertsSignal(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	results := []engine.MintResult{{
		Aggregate: domain.AggregatedTokenState{Mint: "MINT", NetFlow60sSol: 1, CreatedAt: 1000, UpdatedAt: 1000},
		Signals: []domain.TokenSignal{{
			Mint: "MINT", SignalType: domain.SignalBreakout, WindowSeconds: 60,
			Severity: 3, Score: 0.5, DetailsJSON: `{"x":1}`, CreatedAt: 1000,
		}},
	}}

	if err := w.WriteFlush(ctx, results); err != nil {
		t.Fatalf("WriteFlush: %v", err)
	}

	var agg TokenAggregateRecord
	if err := w.GetDB().First(&agg, "mint = ?", "MINT").Error; err != nil {
		t.Fatalf("read back aggregate: %v", err)
	}
	if agg.CreatedAt != 1000 {
		t.Fatalf("CreatedAt = %d, want 1000 on first insert", agg.CreatedAt)
	}

	var count int64
	w.GetDB().Model(&TokenSignalRecord{}).Where("mint = ?", "MINT").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 signal row, got %d", count)
	}
}

func TestUpsertPreservesCreatedAtAcrossFlushes(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := []engine.MintResult{{Aggregate: domain.AggregatedTokenState{Mint: "MINT", CreatedAt: 1000, UpdatedAt: 1000}}}
	second := []engine.MintResult{{Aggregate: domain.AggregatedTokenState{Mint: "MINT", NetFlow60sSol: 9, CreatedAt: 1000, UpdatedAt: 2000}}}

	if err := w.WriteFlush(ctx, first); err != nil {
		t.Fatalf("first WriteFlush: %v", err)
	}
	if err := w.WriteFlush(ctx, second); err != nil {
		t.Fatalf("second WriteFlush: %v", err)
	}

	var agg TokenAggregateRecord
	if err := w.GetDB().First(&agg, "mint = ?", "MINT").Error; err != nil {
		t.Fatalf("read back aggregate: %v", err)
	}
	if agg.CreatedAt != 1000 {
		t.Fatalf("CreatedAt = %d, want preserved 1000", agg.CreatedAt)
	}
	if agg.NetFlow60sSol != 9 {
		t.Fatalf("NetFlow60sSol = %v, want updated 9", agg.NetFlow60sSol)
	}
}

func TestWriteSignalBlockedByBlocklistGate(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	if err := w.GetDB().Create(&MintBlocklistRecord{Mint: "BAD", Reason: "rug", BlockedBy: "admin", CreatedAt: 1}).Error; err != nil {
		t.Fatalf("seed blocklist: %v", err)
	}

	sig := domain.TokenSignal{Mint: "BAD", SignalType: domain.SignalSurge, DetailsJSON: `{"a":1}`, CreatedAt: 1}
	err := w.writeSignal(ctx, sig)
	if err == nil {
		t.Fatalf("expected blocked write to fail")
	}
	var se *StoreError
	if !asStoreError(err, &se) {
		t.Fatalf("expected a *StoreError, got %v", err)
	}
	if se.Kind != KindBlocked {
		t.Fatalf("Kind = %v, want KindBlocked", se.Kind)
	}
}

func TestWriteSignalAllowedAfterTemporaryBlockExpires(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	expiresAt := int64(500)
	if err := w.GetDB().Create(&MintBlocklistRecord{
		Mint: "TEMP", Reason: "cooldown", BlockedBy: "auto-detector",
		CreatedAt: 1, ExpiresAt: &expiresAt,
	}).Error; err != nil {
		t.Fatalf("seed blocklist: %v", err)
	}

	blockedDuring := domain.TokenSignal{Mint: "TEMP", SignalType: domain.SignalSurge, DetailsJSON: `{"a":1}`, CreatedAt: 200}
	if err := w.writeSignal(ctx, blockedDuring); err == nil {
		t.Fatalf("expected write before expiry to be blocked")
	}

	afterExpiry := domain.TokenSignal{Mint: "TEMP", SignalType: domain.SignalSurge, DetailsJSON: `{"a":1}`, CreatedAt: 600}
	if err := w.writeSignal(ctx, afterExpiry); err != nil {
		t.Fatalf("expected write after expiry to succeed, got %v", err)
	}
}

func TestWriteSignalRejectsInvalidDetailsJSON(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	sig := domain.TokenSignal{Mint: "MINT", SignalType: domain.SignalSurge, DetailsJSON: "not json", CreatedAt: 1}
	err := w.writeSignal(ctx, sig)
	var se *StoreError
	if !asStoreError(err, &se) || se.Kind != KindInvalidDetails {
		t.Fatalf("expected KindInvalidDetails, got %v", err)
	}
}

func asStoreError(err error, target **StoreError) bool {
	se, ok := err.(*StoreError)
	if !ok {
		return false
	}
	*target = se
	return true
}

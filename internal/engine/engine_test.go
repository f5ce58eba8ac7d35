package engine

import (
	"testing"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

func trade(ts int64, mint, user string, dir domain.Direction, sol float64, program string) domain.TradeEvent {
	return domain.TradeEvent{
		Timestamp:     ts,
		Mint:          mint,
		Direction:     dir,
		SolAmount:     sol,
		UserAccount:   user,
		SourceProgram: program,
	}
}

func TestProcessTradeThenFlushProducesAggregate(t *testing.T) {
	e := New()
	e.ProcessTrade(trade(1000, "MINT", "alice", domain.DirectionBuy, 2, domain.ProgramPumpSwap))
	e.ProcessTrade(trade(1001, "MINT", "bob", domain.DirectionSell, 1, domain.ProgramPumpSwap))

	results, stats := e.Flush(1002)
	if stats.ActiveMints != 1 {
		t.Fatalf("ActiveMints = %d, want 1", stats.ActiveMints)
	}
	if len(results) != 1 || results[0].Aggregate.Mint != "MINT" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Aggregate.NetFlow60sSol != 1 {
		t.Fatalf("NetFlow60sSol = %v, want 1", results[0].Aggregate.NetFlow60sSol)
	}
}

func TestGCSweepRemovesFullyEvictedMint(t *testing.T) {
	e := New()
	e.ProcessTrade(trade(0, "MINT", "alice", domain.DirectionBuy, 1, domain.ProgramPumpSwap))
	e.Flush(100_000) // all windows empty at this point

	if e.ActiveMintCount() != 0 {
		t.Fatalf("expected mint to be GC'd after full eviction, ActiveMintCount=%d", e.ActiveMintCount())
	}
}

func TestFlushIsEdgeTriggeredAcrossCycles(t *testing.T) {
	e := New()
	// Build a breakout condition: strong net flow, enough unique wallets, high buy ratio.
	base := int64(1000)
	for i := 0; i < 6; i++ {
		e.ProcessTrade(trade(base, "MINT", string(rune('a'+i)), domain.DirectionBuy, 3, domain.ProgramPumpSwap))
	}

	results1, _ := e.Flush(base + 1)
	fired1 := countSignals(results1, domain.SignalBreakout)
	if fired1 != 1 {
		t.Fatalf("expected breakout to fire on first flush, got %d", fired1)
	}

	results2, _ := e.Flush(base + 2)
	fired2 := countSignals(results2, domain.SignalBreakout)
	if fired2 != 0 {
		t.Fatalf("breakout should not re-fire on the next flush while still active, got %d", fired2)
	}
}

func TestComputeMetricsReturnsErrorAndDoesNotMutateStateForUnknownMint(t *testing.T) {
	e := New()
	if _, _, _, err := e.ComputeMetrics("GHOST", 1000); err == nil {
		t.Fatalf("expected error for unknown mint")
	}
	if e.ActiveMintCount() != 0 {
		t.Fatalf("ComputeMetrics on unknown mint must not create state, ActiveMintCount=%d", e.ActiveMintCount())
	}
}

func TestComputeMetricsReturnsErrorOnFullyEvictedMint(t *testing.T) {
	e := New()
	e.ProcessTrade(trade(0, "MINT", "alice", domain.DirectionBuy, 1, domain.ProgramPumpSwap))

	if _, _, _, err := e.ComputeMetrics("MINT", 100_000); err == nil {
		t.Fatalf("expected error once all windows are empty after eviction")
	}
}

func TestComputeMetricsDefaultsSourceProgramFromFirstTrade(t *testing.T) {
	e := New()
	e.ProcessTrade(trade(1000, "MINT", "alice", domain.DirectionBuy, 2, domain.ProgramBonkSwap))

	_, _, agg, err := e.ComputeMetrics("MINT", 1001)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if agg.SourceProgram != domain.ProgramBonkSwap {
		t.Fatalf("SourceProgram = %q, want %q", agg.SourceProgram, domain.ProgramBonkSwap)
	}
	if agg.CreatedAt != 1000 {
		t.Fatalf("CreatedAt = %d, want first-trade timestamp 1000", agg.CreatedAt)
	}
}

func TestRefreshMetadataOverwritesSourceProgramButKeepsCreatedAt(t *testing.T) {
	e := New()
	e.ProcessTrade(trade(1000, "MINT", "alice", domain.DirectionBuy, 2, domain.ProgramUnknown))
	e.RefreshMetadata("MINT", domain.ProgramMoonshot, 5000)

	_, _, agg, err := e.ComputeMetrics("MINT", 1001)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if agg.SourceProgram != domain.ProgramMoonshot {
		t.Fatalf("SourceProgram = %q, want refreshed %q", agg.SourceProgram, domain.ProgramMoonshot)
	}
	if agg.CreatedAt != 1000 {
		t.Fatalf("CreatedAt = %d, want preserved first-trade timestamp 1000", agg.CreatedAt)
	}
}

func TestUpdateBotHistoryIsIndependentlyCallable(t *testing.T) {
	e := New()
	e.ProcessTrade(trade(1000, "MINT", "alice", domain.DirectionBuy, 2, domain.ProgramPumpSwap))
	e.UpdateBotHistory("MINT", 7)
	if e.lastBotCount["MINT"] != 7 {
		t.Fatalf("lastBotCount = %d, want 7", e.lastBotCount["MINT"])
	}
}

func countSignals(results []MintResult, want domain.SignalType) int {
	n := 0
	for _, r := range results {
		for _, s := range r.Signals {
			if s.SignalType == want {
				n++
			}
		}
	}
	return n
}

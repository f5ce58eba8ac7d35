// Package scorer implements the Persistence Scorer: a periodic job,
// independent of ingestion, that reads token_aggregates + token_signals
// and upserts a 0-10 persistence score, pattern tag, and confidence tier
// per active mint into token_signal_summary.
//
// Grounded on blackholedex's MySQLRecorder read methods (GetSnapshotsByTimeRange,
// CountSnapshots: plain gorm queries against a *gorm.DB returning typed
// rows) for its query shape, and on the teacher's live.go ticker loop for
// its own independent periodic-run shape.
//
// Note on scope: spec §4.9's prose references a net_flow_3600s window and
// a dca_buys_3600s field that the canonical data model (spec §3) does not
// carry — token_aggregates has exactly three net_flow horizons (60/300/900s).
// This package treats §3 as authoritative: multi_window_presence is
// computed over the three horizons that exist, avg_net_flow averages
// net_flow_300s and net_flow_900s, and dca_overlap is derived from the
// count of DCA_CONVICTION signals in the trailing hour rather than a
// nonexistent dca_buys_3600s column (see DESIGN.md).
package scorer

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmittakarin8/solflow-pipeline/internal/store"
)

const (
	maxMintsPerRun = 100
	hourSeconds    = 3600
	day1Seconds    = 24 * hourSeconds
	day3Seconds    = 72 * hourSeconds
)

// PatternTag is the categorical label attached to a mint by the scorer.
type PatternTag string

const (
	PatternAccumulation PatternTag = "Accumulation"
	PatternMomentum     PatternTag = "Momentum"
	PatternDistribution PatternTag = "Distribution"
	PatternWashout      PatternTag = "Washout"
	PatternNoise        PatternTag = "Noise"
)

// ConfidenceTier is the qualitative grade attached to a score.
type ConfidenceTier string

const (
	ConfidenceLow    ConfidenceTier = "Low"
	ConfidenceMedium ConfidenceTier = "Medium"
	ConfidenceHigh   ConfidenceTier = "High"
)

// Scorer runs the persistence-scoring pass against the shared store DB.
type Scorer struct {
	db *gorm.DB
}

// New returns a Scorer reading/writing through w's underlying database.
func New(w *store.Writer) *Scorer {
	return &Scorer{db: w.GetDB()}
}

// candidate is the subset of token_aggregates + token_metadata columns the
// scoring formula needs.
type candidate struct {
	Mint              string
	CreatedAt         int64
	NetFlow60s        float64
	NetFlow300s       float64
	NetFlow900s       float64
	BuyCount300s      int
	SellCount300s     int
	BotTrades300s     int
	UniqueWallets300s int
}

// Run executes one scoring pass: selects up to 100 candidate mints ordered
// by net_flow_300s desc, scores each, and upserts token_signal_summary.
func (s *Scorer) Run(ctx context.Context, now int64) (int, error) {
	candidates, err := s.loadCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load scorer candidates: %w", err)
	}

	scored := 0
	for _, c := range candidates {
		summary, err := s.scoreOne(ctx, c, now)
		if err != nil {
			return scored, fmt.Errorf("score mint %s: %w", c.Mint, err)
		}
		if err := s.upsert(ctx, summary); err != nil {
			return scored, fmt.Errorf("upsert summary for %s: %w", c.Mint, err)
		}
		scored++
	}
	return scored, nil
}

// loadCandidates joins token_aggregates with mint_blocklist to exclude
// blocked mints (spec §4.9's "blocked != 1" filter, adapted to this
// schema's blocklist-as-separate-table shape rather than a boolean
// column), ordered by net_flow_300s desc, capped at 100 rows. Any mint
// with a mint_blocklist row is excluded; expires_at is not consulted.
func (s *Scorer) loadCandidates(ctx context.Context) ([]candidate, error) {
	var rows []store.TokenAggregateRecord
	err := s.db.WithContext(ctx).
		Where("mint NOT IN (SELECT mint FROM mint_blocklist)").
		Order("net_flow_300s_sol DESC").
		Limit(maxMintsPerRun).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]candidate, len(rows))
	for i, r := range rows {
		out[i] = candidate{
			Mint:              r.Mint,
			CreatedAt:         r.CreatedAt,
			NetFlow60s:        r.NetFlow60sSol,
			NetFlow300s:       r.NetFlow300sSol,
			NetFlow900s:       r.NetFlow900sSol,
			BuyCount300s:      r.BuyCount300s,
			SellCount300s:     r.SellCount300s,
			BotTrades300s:     r.BotTrades300s,
			UniqueWallets300s: r.UniqueWallets300s,
		}
	}
	return out, nil
}

func (s *Scorer) scoreOne(ctx context.Context, c candidate, now int64) (store.TokenSignalSummaryRecord, error) {
	count24h, count72h, countDCA1h, err := s.signalCounts(ctx, c.Mint, now)
	if err != nil {
		return store.TokenSignalSummaryRecord{}, err
	}

	lifetimeHours := float64(now-c.CreatedAt) / 3600
	if lifetimeHours < 0 {
		lifetimeHours = 0
	}

	totalTrades300 := c.BuyCount300s + c.SellCount300s
	var botRatio, buyRatio float64
	if totalTrades300 > 0 {
		botRatio = float64(c.BotTrades300s) / float64(totalTrades300)
		buyRatio = float64(c.BuyCount300s) / float64(totalTrades300)
	}

	avgNetFlow := (c.NetFlow300s + c.NetFlow900s) / 2
	dcaOverlap := countDCA1h > 3

	multiWindowPresence := presenceFraction(c.NetFlow60s, c.NetFlow300s, c.NetFlow900s)
	walletScore := clamp(float64(c.UniqueWallets300s) / 50)
	flowScore := clamp(max0(avgNetFlow) / 10)
	lifetimeFactor := clamp(lifetimeHours / 24)

	raw := multiWindowPresence*30 + walletScore*25 + flowScore*25 + lifetimeFactor*10 - botRatio*10
	score := clampRange(math.Round(raw/10), 0, 10)

	tag := classify(dcaOverlap, avgNetFlow, buyRatio)
	confidence := confidenceTier(totalTrades300, lifetimeHours, botRatio)

	return store.TokenSignalSummaryRecord{
		Mint:             c.Mint,
		PersistenceScore: score,
		PatternTag:       string(tag),
		ConfidenceTier:   string(confidence),
		SignalCount24h:   count24h,
		SignalCount72h:   count72h,
		UpdatedAt:        now,
	}, nil
}

func (s *Scorer) signalCounts(ctx context.Context, mint string, now int64) (count24h, count72h, countDCA1h int, err error) {
	var c24, c72, cDCA int64
	db := s.db.WithContext(ctx).Model(&store.TokenSignalRecord{}).Where("mint = ?", mint).Session(&gorm.Session{})

	if err := db.Where("created_at >= ?", now-day1Seconds).Count(&c24).Error; err != nil {
		return 0, 0, 0, err
	}
	if err := db.Where("created_at >= ?", now-day3Seconds).Count(&c72).Error; err != nil {
		return 0, 0, 0, err
	}
	if err := s.db.WithContext(ctx).Model(&store.TokenSignalRecord{}).
		Where("mint = ? AND signal_type = ? AND created_at >= ?", mint, "DCA_CONVICTION", now-hourSeconds).
		Count(&cDCA).Error; err != nil {
		return 0, 0, 0, err
	}
	return int(c24), int(c72), int(cDCA), nil
}

func (s *Scorer) upsert(ctx context.Context, rec store.TokenSignalSummaryRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"persistence_score", "pattern_tag", "confidence_tier",
			"signal_count_24h", "signal_count_72h", "updated_at",
		}),
	}).Create(&rec).Error
}

func classify(dcaOverlap bool, avgNetFlow, buyRatio float64) PatternTag {
	switch {
	case dcaOverlap && avgNetFlow > 0 && buyRatio > 0.6:
		return PatternAccumulation
	case avgNetFlow > 5 && buyRatio > 0.7:
		return PatternMomentum
	case avgNetFlow < -2 && buyRatio < 0.4:
		return PatternDistribution
	case avgNetFlow < -5:
		return PatternWashout
	default:
		return PatternNoise
	}
}

func confidenceTier(totalTrades300 int, lifetimeHours, botRatio float64) ConfidenceTier {
	c := 0.4*clamp(float64(totalTrades300)/50) + 0.3*clamp(lifetimeHours/24) + 0.3*(1-botRatio)
	switch {
	case c > 0.7:
		return ConfidenceHigh
	case c > 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func presenceFraction(netFlows ...float64) float64 {
	present := 0
	for _, v := range netFlows {
		if v > 0.01 || v < -0.01 {
			present++
		}
	}
	return float64(present) / float64(len(netFlows))
}

func clamp(x float64) float64 { return clampRange(x, 0, 1) }

func clampRange(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func max0(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

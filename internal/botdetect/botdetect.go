// Package botdetect classifies wallets active in a mint's 300s trading
// window as bots using the four heuristics in spec §4.2. It has no
// dependency on engine state: Classify takes a plain slice of trade events,
// in the same free-function style as the teacher's indicators.go (SMA, RSI,
// ZScore all take a []Candle and return derived values with no receiver).
package botdetect

import (
	"math"
	"sort"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

// Thresholds bundles the four heuristic cutoffs. Fixed within a build per
// spec §4.2, but kept as a struct (rather than package constants) so tests
// can probe boundary behavior without touching global state.
type Thresholds struct {
	HighFrequencyTradeCount int     // strict >
	RapidSuccessionSeconds  int64   // Δt <=
	RapidSuccessionMinPairs int     // >=
	AlternationMinEntries   int     // >=
	AlternationRateAbove    float64 // strict >
	AmountMinEntries        int     // >=
	AmountEpsilon           float64
	AmountFractionAbove     float64 // strict >
}

// DefaultThresholds returns the cutoffs spec §4.2 specifies.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighFrequencyTradeCount: 10,
		RapidSuccessionSeconds:  1,
		RapidSuccessionMinPairs: 3,
		AlternationMinEntries:   4,
		AlternationRateAbove:    0.7,
		AmountMinEntries:        3,
		AmountEpsilon:           1e-4,
		AmountFractionAbove:     0.5,
	}
}

// Result is the outcome of classifying the 300s window for one mint.
type Result struct {
	BotWallets    map[string]struct{}
	BotTradeCount int // sum of trade counts belonging to bot wallets
}

// Classify groups trades300 by user_account and flags each wallet as a bot
// if it trips any of the four heuristics. Empty user accounts are never
// classified (they can't be correlated across trades).
func Classify(trades300 []domain.TradeEvent, th Thresholds) Result {
	byUser := make(map[string][]domain.TradeEvent)
	for _, e := range trades300 {
		if e.UserAccount == "" {
			continue
		}
		byUser[e.UserAccount] = append(byUser[e.UserAccount], e)
	}

	res := Result{BotWallets: make(map[string]struct{})}
	for user, trades := range byUser {
		if isBot(trades, th) {
			res.BotWallets[user] = struct{}{}
			res.BotTradeCount += len(trades)
		}
	}
	return res
}

func isBot(trades []domain.TradeEvent, th Thresholds) bool {
	if len(trades) > th.HighFrequencyTradeCount {
		return true
	}
	if hasRapidSuccession(trades, th) {
		return true
	}
	if hasHighAlternation(trades, th) {
		return true
	}
	if hasRepeatedAmounts(trades, th) {
		return true
	}
	return false
}

// hasRapidSuccession reports whether at least RapidSuccessionMinPairs
// disjoint consecutive pairs (after sorting by timestamp) are within
// RapidSuccessionSeconds of each other. "Disjoint" means each trade
// participates in at most one counted pair, so we greedily consume pairs
// left to right.
func hasRapidSuccession(trades []domain.TradeEvent, th Thresholds) bool {
	ts := make([]int64, len(trades))
	for i, e := range trades {
		ts[i] = e.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	pairs := 0
	i := 0
	for i+1 < len(ts) {
		if ts[i+1]-ts[i] <= th.RapidSuccessionSeconds {
			pairs++
			i += 2 // consume both to keep pairs disjoint
		} else {
			i++
		}
	}
	return pairs >= th.RapidSuccessionMinPairs
}

// hasHighAlternation reports whether, in arrival order, the fraction of
// adjacent direction pairs that differ (and neither is Unknown) exceeds
// AlternationRateAbove, given at least AlternationMinEntries directions.
func hasHighAlternation(trades []domain.TradeEvent, th Thresholds) bool {
	if len(trades) < th.AlternationMinEntries {
		return false
	}
	n := len(trades)
	if n < 2 {
		return false
	}
	alternations := 0
	for i := 1; i < n; i++ {
		a, b := trades[i-1].Direction, trades[i].Direction
		if a != b && a != domain.DirectionUnknown && b != domain.DirectionUnknown {
			alternations++
		}
	}
	rate := float64(alternations) / float64(n-1)
	return rate > th.AlternationRateAbove
}

// hasRepeatedAmounts reports whether, among all unordered pairs of SOL
// amounts, the fraction with |a_i - a_j| < AmountEpsilon exceeds
// AmountFractionAbove, given at least AmountMinEntries amounts.
func hasRepeatedAmounts(trades []domain.TradeEvent, th Thresholds) bool {
	if len(trades) < th.AmountMinEntries {
		return false
	}
	n := len(trades)
	total := n * (n - 1) / 2
	if total == 0 {
		return false
	}
	close := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(trades[i].SolAmount-trades[j].SolAmount) < th.AmountEpsilon {
				close++
			}
		}
	}
	return float64(close)/float64(total) > th.AmountFractionAbove
}

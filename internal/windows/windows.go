// Package windows implements the per-mint rolling trade windows: the 60s,
// 300s, and 900s trailing sequences the pipeline engine keys by mint, their
// eviction, and the wallet-set bookkeeping the bot detector and signal
// detector read.
//
// Mirrors the teacher's style for time-bounded in-memory state (trader.go's
// capped ExitHistorySize ring) and for indicator-style pure helpers
// (indicators.go's SMA/RSI taking plain slices) — eviction here is a slice
// re-slice rather than a true ring buffer since windows are timestamp- not
// count-bounded.
package windows

import (
	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

const (
	Window60s  = 60
	Window300s = 300
	Window900s = 900
)

// State holds one mint's rolling trade sequences. Zero value is not usable;
// construct with New.
type State struct {
	trades60  []domain.TradeEvent
	trades300 []domain.TradeEvent
	trades900 []domain.TradeEvent

	uniqueWallets300 map[string]struct{}
	botWallets300    map[string]struct{}

	byProgram map[string][]domain.TradeEvent
}

// New returns an empty rolling state ready to accept trades.
func New() *State {
	return &State{
		uniqueWallets300: make(map[string]struct{}),
		botWallets300:    make(map[string]struct{}),
		byProgram:        make(map[string][]domain.TradeEvent),
	}
}

// AddTrade appends event to all three window sequences and to its
// source-program sequence. Window membership is pruned lazily by
// EvictOld; AddTrade never rejects an event based on its timestamp,
// since arrivals may be slightly out of order (spec §4.1).
func (s *State) AddTrade(event domain.TradeEvent) {
	s.trades60 = append(s.trades60, event)
	s.trades300 = append(s.trades300, event)
	s.trades900 = append(s.trades900, event)
	if event.SourceProgram != "" {
		s.byProgram[event.SourceProgram] = append(s.byProgram[event.SourceProgram], event)
	}
	if event.UserAccount != "" {
		s.uniqueWallets300[event.UserAccount] = struct{}{}
	}
}

// EvictOld drops any event older than each window's duration relative to
// now, then recomputes unique_wallets_300s from the surviving 300s
// sequence. Eviction is idempotent: calling it twice with the same now
// (and no intervening AddTrade) is a no-op the second time.
func (s *State) EvictOld(now int64) {
	s.trades60 = evict(s.trades60, now-Window60s)
	s.trades300 = evict(s.trades300, now-Window300s)
	s.trades900 = evict(s.trades900, now-Window900s)

	for program, evs := range s.byProgram {
		pruned := evict(evs, now-Window900s)
		if len(pruned) == 0 {
			delete(s.byProgram, program)
		} else {
			s.byProgram[program] = pruned
		}
	}

	s.recomputeWallets300()
}

func evict(events []domain.TradeEvent, cutoff int64) []domain.TradeEvent {
	if len(events) == 0 {
		return events
	}
	out := events[:0]
	for _, e := range events {
		if e.Timestamp >= cutoff {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	// copy so the backing array from the pre-evict slice isn't retained
	// indefinitely by a long-lived but now-tiny window.
	cp := make([]domain.TradeEvent, len(out))
	copy(cp, out)
	return cp
}

func (s *State) recomputeWallets300() {
	s.uniqueWallets300 = make(map[string]struct{}, len(s.trades300))
	for _, e := range s.trades300 {
		if e.UserAccount != "" {
			s.uniqueWallets300[e.UserAccount] = struct{}{}
		}
	}
	// Bot wallets are recomputed by the botdetect package each flush from
	// Trades300(); clear the cached set here so a stale classification
	// never survives an eviction that dropped the trades backing it.
	s.botWallets300 = make(map[string]struct{})
}

// SetBotWallets300 records this flush's bot-wallet classification. Owned by
// the engine, which calls this after running botdetect over Trades300().
func (s *State) SetBotWallets300(wallets map[string]struct{}) {
	s.botWallets300 = wallets
}

// Trades60 returns the current 60s window. Callers must not mutate it.
func (s *State) Trades60() []domain.TradeEvent { return s.trades60 }

// Trades300 returns the current 300s window. Callers must not mutate it.
func (s *State) Trades300() []domain.TradeEvent { return s.trades300 }

// Trades900 returns the current 900s window. Callers must not mutate it.
func (s *State) Trades900() []domain.TradeEvent { return s.trades900 }

// ByProgram returns the current 900s-bounded per-program sequence for
// program. Callers must not mutate the returned slice.
func (s *State) ByProgram(program string) []domain.TradeEvent {
	return s.byProgram[program]
}

// UniqueWallets300 returns the count of distinct non-empty user accounts
// observed in the current 300s window.
func (s *State) UniqueWallets300() int { return len(s.uniqueWallets300) }

// BotWallets300 returns the bot-classified wallet set most recently stored
// via SetBotWallets300.
func (s *State) BotWallets300() map[string]struct{} { return s.botWallets300 }

// IsActive reports whether any of the three windows is non-empty, i.e.
// whether this mint still warrants a place in the engine's map after
// eviction (spec §4.1, §9 GC policy).
func (s *State) IsActive() bool {
	return len(s.trades60) > 0 || len(s.trades300) > 0 || len(s.trades900) > 0
}

// LastTradeTimestamp returns the most recent event timestamp across all
// three sequences, or ok=false if all are empty.
func (s *State) LastTradeTimestamp() (int64, bool) {
	var best int64
	found := false
	scan := func(evs []domain.TradeEvent) {
		for _, e := range evs {
			if !found || e.Timestamp > best {
				best = e.Timestamp
				found = true
			}
		}
	}
	scan(s.trades900)
	scan(s.trades300)
	scan(s.trades60)
	return best, found
}

// Metrics computes the transient RollingMetrics snapshot from the current
// window contents. Must be called after EvictOld(now) for the windows to
// reflect now; bot wallet counts reflect whatever was last recorded via
// SetBotWallets300.
func (s *State) Metrics() domain.RollingMetrics {
	var m domain.RollingMetrics

	m.NetFlow60sSol, m.BuyCount60s, m.SellCount60s = netFlowAndCounts(s.trades60)
	m.NetFlow300sSol, m.BuyCount300s, m.SellCount300s = netFlowAndCounts(s.trades300)
	m.NetFlow900sSol, m.BuyCount900s, m.SellCount900s = netFlowAndCounts(s.trades900)

	m.UniqueWallets300s = len(s.uniqueWallets300)
	m.BotWalletsCount300s = len(s.botWallets300)

	for _, e := range s.trades300 {
		if e.UserAccount != "" {
			if _, ok := s.botWallets300[e.UserAccount]; ok {
				m.BotTradesCount300s++
			}
		}
	}

	return m
}

func netFlowAndCounts(events []domain.TradeEvent) (net float64, buys, sells int) {
	for _, e := range events {
		switch e.Direction {
		case domain.DirectionBuy:
			net += e.SolAmount
			buys++
		case domain.DirectionSell:
			net -= e.SolAmount
			sells++
		}
	}
	return net, buys, sells
}

// Package signals implements the multi-condition signal detector (spec
// §4.3), its edge-triggered deduplication (spec §4.3 "Deduplication"), and
// the cross-program DCA-to-spot correlator (spec §4.3 DCA_CONVICTION row,
// §9 "avoid quadratic scans").
package signals

import (
	"encoding/json"
	"sort"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

// clamp01 mirrors the teacher's trader.go clamp(x, lo, hi float64) helper,
// generalized to the [0,1] range the score formulas in spec §4.3 use.
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Detected is one signal type's evaluation result for the current flush.
type Detected struct {
	Type          domain.SignalType
	Active        bool
	WindowSeconds int
	Score         float64
	Severity      int
	Details       map[string]float64
}

// Detect evaluates all five signal conditions against the current metrics,
// per-program trade sequences, now, and the previous flush's bot count. It
// returns one Detected entry per signal type (AllSignalTypes order),
// active or not — callers apply deduplication separately via Dedup.
func Detect(m domain.RollingMetrics, byProgram func(program string) []domain.TradeEvent, now int64, prevBotTrades300s int) []Detected {
	out := make([]Detected, 0, len(domain.AllSignalTypes()))
	out = append(out, detectBreakout(m))
	out = append(out, detectFocused(m))
	out = append(out, detectSurge(m))
	out = append(out, detectBotDropoff(m, prevBotTrades300s))
	out = append(out, detectDCAConviction(byProgram, now))
	return out
}

func buyRatio60s(m domain.RollingMetrics) float64 {
	total := m.BuyCount60s + m.SellCount60s
	if total == 0 {
		return 0
	}
	return float64(m.BuyCount60s) / float64(total)
}

func botRatio300s(m domain.RollingMetrics) float64 {
	total := m.BuyCount300s + m.SellCount300s
	if total == 0 {
		return 0
	}
	return float64(m.BotTradesCount300s) / float64(total)
}

func detectBreakout(m domain.RollingMetrics) Detected {
	ratio := buyRatio60s(m)
	active := m.NetFlow60sSol > 5 && m.UniqueWallets300s >= 5 && ratio > 0.75
	d := Detected{Type: domain.SignalBreakout, WindowSeconds: 60, Active: active}
	if !active {
		return d
	}
	score := (clamp01(m.NetFlow60sSol/20) + clamp01(float64(m.UniqueWallets300s)/20) + ratio) / 3
	d.Score = score
	switch {
	case score > 0.8:
		d.Severity = 5
	case score > 0.6:
		d.Severity = 4
	case score > 0.4:
		d.Severity = 3
	default:
		d.Severity = 2
	}
	d.Details = map[string]float64{
		"net_flow_60s": m.NetFlow60sSol,
		"unique_wallets": float64(m.UniqueWallets300s),
		"buy_ratio": ratio,
	}
	return d
}

func detectFocused(m domain.RollingMetrics) Detected {
	botRatio := botRatio300s(m)
	active := m.NetFlow300sSol > 3 && botRatio < 0.2 && m.UniqueWallets300s > 0 && m.UniqueWallets300s <= 10
	d := Detected{Type: domain.SignalFocused, WindowSeconds: 300, Active: active}
	if !active {
		return d
	}
	score := (clamp01(m.NetFlow300sSol/10) + clamp01(1/float64(m.UniqueWallets300s)) + (1 - botRatio)) / 3
	d.Score = score
	if m.UniqueWallets300s <= 3 {
		d.Severity = 4
	} else {
		d.Severity = 3
	}
	d.Details = map[string]float64{
		"net_flow_300s":  m.NetFlow300sSol,
		"unique_wallets": float64(m.UniqueWallets300s),
		"bot_ratio":      botRatio,
	}
	return d
}

func detectSurge(m domain.RollingMetrics) Detected {
	avgVolumePer60s := abs(m.NetFlow300sSol) / 5
	var ratio float64
	if avgVolumePer60s > 0 {
		ratio = m.NetFlow60sSol / avgVolumePer60s
	}
	active := m.NetFlow60sSol > 8 && m.BuyCount60s >= 10 && avgVolumePer60s > 0 && ratio >= 3
	d := Detected{Type: domain.SignalSurge, WindowSeconds: 60, Active: active}
	if !active {
		return d
	}
	score := (clamp01(ratio/10) + clamp01(float64(m.BuyCount60s)/30)) / 2
	d.Score = score
	switch {
	case ratio >= 5:
		d.Severity = 5
	case ratio >= 4:
		d.Severity = 4
	default:
		d.Severity = 3
	}
	d.Details = map[string]float64{
		"net_flow_60s":  m.NetFlow60sSol,
		"buy_count_60s": float64(m.BuyCount60s),
		"volume_ratio":  ratio,
	}
	return d
}

func detectBotDropoff(m domain.RollingMetrics, prevBotTrades300s int) Detected {
	d := Detected{Type: domain.SignalBotDropoff, WindowSeconds: 300}
	if prevBotTrades300s < 5 || m.UniqueWallets300s < 3 {
		return d
	}
	decline := float64(prevBotTrades300s-m.BotTradesCount300s) / float64(prevBotTrades300s)
	active := decline >= 0.5
	d.Active = active
	if !active {
		return d
	}
	score := (clamp01(decline) + clamp01(float64(m.UniqueWallets300s)/10)) / 2
	d.Score = score
	if decline >= 0.8 {
		d.Severity = 4
	} else {
		d.Severity = 3
	}
	d.Details = map[string]float64{
		"bot_decline_pct":  decline * 100,
		"unique_wallets":   float64(m.UniqueWallets300s),
		"prev_bot_trades":  float64(prevBotTrades300s),
		"curr_bot_trades":  float64(m.BotTradesCount300s),
	}
	return d
}

func detectDCAConviction(byProgram func(program string) []domain.TradeEvent, now int64) Detected {
	d := Detected{Type: domain.SignalDCAConviction, WindowSeconds: 60}

	dcaBuys := spotBuys(byProgram(domain.ProgramJupiterDCA))
	if len(dcaBuys) == 0 {
		return d
	}

	var spotBuysAll []domain.TradeEvent
	for _, program := range []string{domain.ProgramPumpSwap, domain.ProgramBonkSwap, domain.ProgramMoonshot} {
		spotBuysAll = append(spotBuysAll, spotBuys(byProgram(program))...)
	}
	if len(spotBuysAll) == 0 {
		return d
	}

	overlap := overlapRatio(dcaBuys, spotBuysAll, 60)
	active := overlap >= 0.25
	d.Active = active
	if !active {
		return d
	}
	d.Score = overlap
	switch {
	case overlap >= 0.5:
		d.Severity = 5
	case overlap >= 0.4:
		d.Severity = 4
	case overlap >= 0.3:
		d.Severity = 3
	default:
		d.Severity = 2
	}
	d.Details = map[string]float64{
		"overlap_ratio": overlap,
		"dca_buys":      float64(len(dcaBuys)),
		"spot_buys":     float64(len(spotBuysAll)),
	}
	return d
}

func spotBuys(events []domain.TradeEvent) []domain.TradeEvent {
	var out []domain.TradeEvent
	for _, e := range events {
		if e.Direction == domain.DirectionBuy {
			out = append(out, e)
		}
	}
	return out
}

// overlapRatio returns the fraction of dcaBuys with at least one spotBuy
// within toleranceSeconds. spotBuys is sorted once and searched with binary
// search per dcaBuy, per spec §9's "avoid quadratic scans" guidance.
func overlapRatio(dcaBuys, spotBuys []domain.TradeEvent, toleranceSeconds int64) float64 {
	if len(dcaBuys) == 0 {
		return 0
	}
	ts := make([]int64, len(spotBuys))
	for i, e := range spotBuys {
		ts[i] = e.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	matched := 0
	for _, dca := range dcaBuys {
		if hasNearby(ts, dca.Timestamp, toleranceSeconds) {
			matched++
		}
	}
	return float64(matched) / float64(len(dcaBuys))
}

// hasNearby reports whether sorted contains a value within tolerance of t,
// via binary search for the insertion point and checking its neighbors.
func hasNearby(sorted []int64, t, tolerance int64) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= t })
	if i < len(sorted) && sorted[i]-t <= tolerance {
		return true
	}
	if i > 0 && t-sorted[i-1] <= tolerance {
		return true
	}
	return false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// ToJSONDetails marshals a Detected's Details map to a flat well-formed
// JSON object, as spec §4.3 requires for TokenSignal.DetailsJSON.
func ToJSONDetails(details map[string]float64) (string, error) {
	if details == nil {
		details = map[string]float64{}
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Dedup applies the edge-triggered dedup rule from spec §4.3: a signal only
// fires on the false→true transition of its Active state. prevState is the
// engine's LastSignalState entry for this mint (nil/missing treated as all
// false); Dedup returns the subset of detected that should actually be
// emitted as new TokenSignal rows, and the updated state map to store back.
func Dedup(detected []Detected, prevState map[domain.SignalType]bool) (fire []Detected, nextState map[domain.SignalType]bool) {
	nextState = make(map[domain.SignalType]bool, len(detected))
	for _, d := range detected {
		was := prevState[d.Type]
		nextState[d.Type] = d.Active
		if d.Active && !was {
			fire = append(fire, d)
		}
	}
	return fire, nextState
}

// ToTokenSignal converts a Detected firing into a durable TokenSignal row.
// createdAt is the flush's now timestamp, passed in rather than read from
// time.Now so callers stay testable and so a single flush cycle stamps all
// of a mint's signals identically.
func ToTokenSignal(mint string, d Detected, createdAt int64) (domain.TokenSignal, error) {
	detailsJSON, err := ToJSONDetails(d.Details)
	if err != nil {
		return domain.TokenSignal{}, err
	}
	return domain.TokenSignal{
		Mint:          mint,
		SignalType:    d.Type,
		WindowSeconds: d.WindowSeconds,
		Severity:      d.Severity,
		Score:         d.Score,
		DetailsJSON:   detailsJSON,
		CreatedAt:     createdAt,
	}, nil
}

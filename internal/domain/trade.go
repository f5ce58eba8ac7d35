// Package domain holds the value types shared across the pipeline: the
// normalized trade event the producers hand off, and the small enums the
// engine and store key their state by.
package domain

import "strings"

// Direction is the side of a normalized swap.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionBuy
	DirectionSell
)

// String implements fmt.Stringer for log lines.
func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// NormalizeDirection canonicalizes a raw direction string from an upstream
// extractor into a Direction. Unrecognized values are DirectionUnknown.
func NormalizeDirection(s string) Direction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return DirectionBuy
	case "SELL":
		return DirectionSell
	default:
		return DirectionUnknown
	}
}

// TradeEvent is the normalized, immutable record the balance-delta extractor
// produces for every on-chain swap. Once constructed it must not be mutated;
// callers that need a modified copy should construct a new value.
type TradeEvent struct {
	Timestamp      int64 // unix seconds
	Mint           string
	Direction      Direction
	SolAmount      float64 // >= 0
	TokenAmount    float64
	TokenDecimals  uint8
	UserAccount    string // may be empty
	SourceProgram  string
}

// Launch platforms / source programs recognized by the DCA correlator and
// the aggregate store's source_program field. Any other value is carried
// through as an opaque string.
const (
	ProgramPumpSwap    = "PumpSwap"
	ProgramBonkSwap    = "BonkSwap"
	ProgramMoonshot    = "Moonshot"
	ProgramJupiterDCA  = "JupiterDCA"
	ProgramUnknown     = "unknown"
)

// IsSpotProgram reports whether source is one of the spot DEX programs the
// DCA_CONVICTION signal correlates against (PumpSwap, BonkSwap, Moonshot).
func IsSpotProgram(source string) bool {
	switch source {
	case ProgramPumpSwap, ProgramBonkSwap, ProgramMoonshot:
		return true
	default:
		return false
	}
}

// IsDCAProgram reports whether source is the Jupiter DCA program.
func IsDCAProgram(source string) bool {
	return source == ProgramJupiterDCA
}

package domain

import "time"

// Bar is an OHLCV bar for one symbol closing at TsEnd.
// Bid and Ask are optional top-of-book quotes at bar close.
type Bar struct {
	TsEnd  time.Time // bar close time (UTC)
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Bid    *float64 // nil when no quote
	Ask    *float64 // nil when no quote
}

// HasQuotes reports whether both bid and ask are present.
func (b Bar) HasQuotes() bool {
	return b.Bid != nil && b.Ask != nil
}

// Float returns a pointer to v. Used to build optional quote fields.
func Float(v float64) *float64 {
	return &v
}

// NewsEvent is a timestamped news intensity observation from a single source.
type NewsEvent struct {
	Ts        time.Time // observation time (UTC)
	Source    string    // e.g. "gdelt"
	Intensity float64   // non-negative
}

// Default news source name.
const NewsSourceGDELT = "gdelt"

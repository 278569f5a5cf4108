package domain

import "time"

// Side is the direction of an order.
type Side string

// Side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Sign returns +1 for buy and -1 for sell.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// OrderIntent is a request to trade Qty units of Symbol.
type OrderIntent struct {
	Symbol     string
	Side       Side
	Qty        float64 // strictly positive
	ReduceOnly bool    // |target| < |current|
}

// Fill is a simulated execution.
type Fill struct {
	Ts          time.Time
	Symbol      string
	Side        Side
	Qty         float64
	Price       float64
	Notional    float64 // |price * qty|
	Fee         float64
	SpreadBps   float64
	SlippageBps float64
}

// SignedQty returns Qty with the sign of Side.
func (f Fill) SignedQty() float64 {
	return f.Side.Sign() * f.Qty
}

// Position is a per-symbol holding.
type Position struct {
	Symbol   string
	Qty      float64 // signed
	AvgPrice float64 // 0 when flat
}

// EquityPoint is one mark-to-market observation.
type EquityPoint struct {
	Ts     time.Time
	Equity float64
}

// Package execution simulates order fills against consolidated bars.
package execution

import (
	"errors"
	"math"

	"trident-trader/internal/domain"
	"trident-trader/internal/gate"
)

var (
	// ErrInvalidSide is returned for a side other than buy or sell.
	ErrInvalidSide = errors.New("side must be buy or sell")
	// ErrInvalidQty is returned for a non-positive quantity.
	ErrInvalidQty = errors.New("qty must be positive")
	// ErrSymbolMismatch is returned when an order is executed against another symbol's bar.
	ErrSymbolMismatch = errors.New("order symbol does not match bar symbol")
)

// SimulateFill prices a market order against bar.
//
//   - base = ask (buy) or bid (sell) when quotes are usable, else close +/- half the fallback spread
//   - crossed quotes or a non-positive mid count as absent
//   - price = base worsened by slippageBps in the trade direction
//   - fee = notional * feeBps / 1e4
func SimulateFill(bar domain.Bar, side domain.Side, qty, slippageBps, feeBps float64) (domain.Fill, error) {
	if !side.Valid() {
		return domain.Fill{}, ErrInvalidSide
	}
	if qty <= 0 || math.IsNaN(qty) {
		return domain.Fill{}, ErrInvalidQty
	}

	spread := gate.SpreadBps(bar, true)
	sign := side.Sign()

	var base float64
	if gate.UsableQuotes(bar) {
		base = *bar.Ask
		if side == domain.SideSell {
			base = *bar.Bid
		}
	} else {
		half := bar.Close * spread / 1e4 / 2
		base = bar.Close + sign*half
	}

	price := base + sign*base*slippageBps/1e4
	notional := math.Abs(price * qty)
	return domain.Fill{
		Ts:          bar.TsEnd,
		Symbol:      bar.Symbol,
		Side:        side,
		Qty:         qty,
		Price:       price,
		Notional:    notional,
		Fee:         notional * feeBps / 1e4,
		SpreadBps:   spread,
		SlippageBps: slippageBps,
	}, nil
}

// OMS executes order intents with fixed cost parameters.
type OMS struct {
	costs domain.CostScenario
}

// NewOMS creates a simulated order manager.
func NewOMS(costs domain.CostScenario) *OMS {
	return &OMS{costs: costs}
}

// Costs returns the configured cost scenario.
func (o *OMS) Costs() domain.CostScenario {
	return o.costs
}

// Execute simulates intent against bar. It has no side effects, so the fill
// can be inspected before it is applied to a book.
func (o *OMS) Execute(intent domain.OrderIntent, bar domain.Bar) (domain.Fill, error) {
	if intent.Symbol != bar.Symbol {
		return domain.Fill{}, ErrSymbolMismatch
	}
	return SimulateFill(bar, intent.Side, intent.Qty, o.costs.SlippageBps, o.costs.FeeBps)
}

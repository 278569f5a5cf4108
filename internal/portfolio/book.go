// Package portfolio keeps the simulated cash and position ledger.
package portfolio

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"trident-trader/internal/domain"
)

type position struct {
	qty      decimal.Decimal
	avgPrice decimal.Decimal
}

// Book is an average-cost ledger. Amounts are held as decimals and exposed as float64.
type Book struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	positions   map[string]*position

	realized decimal.Decimal
	fees     decimal.Decimal
	turnover decimal.Decimal

	equity        decimal.Decimal
	curve         []domain.EquityPoint
	dayBaseline   map[string]decimal.Decimal
	dailyRealized map[string]decimal.Decimal
}

// NewBook creates a book holding only cash.
func NewBook(initialCash float64) *Book {
	c := decimal.NewFromFloat(initialCash)
	return &Book{
		initialCash:   c,
		cash:          c,
		equity:        c,
		positions:     make(map[string]*position),
		dayBaseline:   make(map[string]decimal.Decimal),
		dailyRealized: make(map[string]decimal.Decimal),
	}
}

func dayKey(ts time.Time) string {
	return ts.UTC().Format(time.DateOnly)
}

// ApplyFill books fill at ts.
//
//   - cash -= signed qty * price + fee; turnover += notional
//   - opening or adding: avg = size-weighted blend
//   - reducing: realize PnL on the overlap, attributed to the UTC date of ts
//   - flat: avg = 0; flipped: avg = fill price
func (b *Book) ApplyFill(fill domain.Fill, ts time.Time) {
	pos, ok := b.positions[fill.Symbol]
	if !ok {
		pos = &position{}
		b.positions[fill.Symbol] = pos
	}

	signed := decimal.NewFromFloat(fill.SignedQty())
	price := decimal.NewFromFloat(fill.Price)
	fee := decimal.NewFromFloat(fill.Fee)

	b.cash = b.cash.Sub(signed.Mul(price)).Sub(fee)
	b.fees = b.fees.Add(fee)
	b.turnover = b.turnover.Add(decimal.NewFromFloat(fill.Notional))

	oldQty := pos.qty
	newQty := oldQty.Add(signed)

	if oldQty.IsZero() || oldQty.Sign() == signed.Sign() {
		total := oldQty.Abs().Add(signed.Abs())
		if total.IsPositive() {
			pos.avgPrice = oldQty.Abs().Mul(pos.avgPrice).Add(signed.Abs().Mul(price)).Div(total)
		}
		pos.qty = newQty
		return
	}

	closeQty := decimal.Min(oldQty.Abs(), signed.Abs())
	var pnl decimal.Decimal
	if oldQty.IsPositive() {
		pnl = closeQty.Mul(price.Sub(pos.avgPrice))
	} else {
		pnl = closeQty.Mul(pos.avgPrice.Sub(price))
	}
	b.realized = b.realized.Add(pnl)
	d := dayKey(ts)
	b.dailyRealized[d] = b.dailyRealized[d].Add(pnl)

	pos.qty = newQty
	switch {
	case newQty.IsZero():
		pos.avgPrice = decimal.Zero
	case newQty.Sign() != oldQty.Sign():
		pos.avgPrice = price
	}
}

// MarkToMarket values open positions at prices and appends an equity point.
// Symbols without a price contribute nothing. The first mark of a UTC day
// fixes that day's baseline.
//
//	equity = cash + SUM(qty * (price - avg))
func (b *Book) MarkToMarket(prices map[string]float64, ts time.Time) float64 {
	b.equity = b.value(prices)
	eq := b.equity.InexactFloat64()
	b.curve = append(b.curve, domain.EquityPoint{Ts: ts, Equity: eq})

	d := dayKey(ts)
	if _, ok := b.dayBaseline[d]; !ok {
		b.dayBaseline[d] = b.equity
	}
	return eq
}

// Valuation returns the equity at prices without recording a mark.
func (b *Book) Valuation(prices map[string]float64) float64 {
	return b.value(prices).InexactFloat64()
}

func (b *Book) value(prices map[string]float64) decimal.Decimal {
	unrealized := decimal.Zero
	for sym, pos := range b.positions {
		if pos.qty.IsZero() {
			continue
		}
		px, ok := prices[sym]
		if !ok {
			continue
		}
		unrealized = unrealized.Add(pos.qty.Mul(decimal.NewFromFloat(px).Sub(pos.avgPrice)))
	}
	return b.cash.Add(unrealized)
}

// Equity returns the equity at the last mark.
func (b *Book) Equity() float64 {
	return b.equity.InexactFloat64()
}

// Cash returns the current cash balance.
func (b *Book) Cash() float64 {
	return b.cash.InexactFloat64()
}

// DailyPnL returns equity minus the baseline of ts's UTC day, or minus the
// initial cash if that day has not been marked.
func (b *Book) DailyPnL(ts time.Time) float64 {
	base, ok := b.dayBaseline[dayKey(ts)]
	if !ok {
		base = b.initialCash
	}
	return b.equity.Sub(base).InexactFloat64()
}

// DailyRealizedPnL returns PnL realized on ts's UTC day.
func (b *Book) DailyRealizedPnL(ts time.Time) float64 {
	return b.dailyRealized[dayKey(ts)].InexactFloat64()
}

// RealizedPnL returns the total realized PnL.
func (b *Book) RealizedPnL() float64 {
	return b.realized.InexactFloat64()
}

// Fees returns total fees paid.
func (b *Book) Fees() float64 {
	return b.fees.InexactFloat64()
}

// Turnover returns the sum of fill notionals.
func (b *Book) Turnover() float64 {
	return b.turnover.InexactFloat64()
}

// Qty returns the signed position in symbol.
func (b *Book) Qty(symbol string) float64 {
	if pos, ok := b.positions[symbol]; ok {
		return pos.qty.InexactFloat64()
	}
	return 0
}

// Positions returns open positions sorted by symbol.
func (b *Book) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(b.positions))
	for sym, pos := range b.positions {
		if pos.qty.IsZero() {
			continue
		}
		out = append(out, domain.Position{Symbol: sym, Qty: pos.qty.InexactFloat64(), AvgPrice: pos.avgPrice.InexactFloat64()})
	}
	slices.SortFunc(out, func(a, b domain.Position) int {
		switch {
		case a.Symbol < b.Symbol:
			return -1
		case a.Symbol > b.Symbol:
			return 1
		}
		return 0
	})
	return out
}

// EquityCurve returns a copy of the equity curve.
func (b *Book) EquityCurve() []domain.EquityPoint {
	return slices.Clone(b.curve)
}

// Package risk applies pre-trade limits and the daily-loss kill switch.
package risk

import "math"

// Rejection reasons.
const (
	ReasonKillSwitch  = "kill_switch"
	ReasonDailyLoss   = "daily_loss"
	ReasonMaxNotional = "max_notional"
	ReasonMaxGross    = "max_gross"
)

// Limits are static risk thresholds.
type Limits struct {
	MaxNotionalPerOrder float64 `yaml:"max_notional_per_order" default:"250000" validate:"gt=0"`
	MaxDailyLoss        float64 `yaml:"max_daily_loss" default:"20000" validate:"gt=0"`
	MaxGrossNotional    float64 `yaml:"max_gross_notional" default:"1000000" validate:"gt=0"`
}

// DefaultLimits returns the default thresholds.
func DefaultLimits() Limits {
	return Limits{MaxNotionalPerOrder: 250_000, MaxDailyLoss: 20_000, MaxGrossNotional: 1_000_000}
}

// State carries the kill switch. Once set it stays set until Reset.
type State struct {
	KillSwitch bool
}

// Reset clears the kill switch.
func (s *State) Reset() {
	s.KillSwitch = false
}

// Order is the pre-trade view of one order.
type Order struct {
	Notional   float64
	GrossAfter float64 // projected gross notional after the fill
	DailyPnL   float64
	ReduceOnly bool
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Check evaluates order against limits. Reduce-only orders always pass.
// A daily PnL at or below -MaxDailyLoss latches the kill switch.
func Check(limits Limits, state *State, order Order) Decision {
	if state.KillSwitch && !order.ReduceOnly {
		return Decision{Reason: ReasonKillSwitch}
	}
	if order.DailyPnL <= -math.Abs(limits.MaxDailyLoss) {
		state.KillSwitch = true
		if !order.ReduceOnly {
			return Decision{Reason: ReasonDailyLoss}
		}
	}
	if order.ReduceOnly {
		return Decision{Allowed: true}
	}
	if order.Notional > limits.MaxNotionalPerOrder {
		return Decision{Reason: ReasonMaxNotional}
	}
	if order.GrossAfter > limits.MaxGrossNotional {
		return Decision{Reason: ReasonMaxGross}
	}
	return Decision{Allowed: true}
}

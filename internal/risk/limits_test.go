package risk

import "testing"

func TestCheck_Limits(t *testing.T) {
	limits := Limits{MaxNotionalPerOrder: 1000, MaxDailyLoss: 100, MaxGrossNotional: 5000}

	tests := []struct {
		name   string
		order  Order
		want   bool
		reason string
	}{
		{"within limits", Order{Notional: 500, GrossAfter: 1000}, true, ""},
		{"order notional", Order{Notional: 1500, GrossAfter: 1500}, false, ReasonMaxNotional},
		{"gross notional", Order{Notional: 500, GrossAfter: 6000}, false, ReasonMaxGross},
		{"reduce only exempt", Order{Notional: 1500, GrossAfter: 6000, ReduceOnly: true}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(limits, &State{}, tt.order)
			if got.Allowed != tt.want || got.Reason != tt.reason {
				t.Errorf("Check = %+v, want allowed=%v reason=%q", got, tt.want, tt.reason)
			}
		})
	}
}

func TestCheck_KillSwitchLatches(t *testing.T) {
	limits := Limits{MaxNotionalPerOrder: 1000, MaxDailyLoss: 100, MaxGrossNotional: 5000}
	state := &State{}

	d := Check(limits, state, Order{Notional: 10, DailyPnL: -100})
	if d.Allowed || d.Reason != ReasonDailyLoss {
		t.Fatalf("Expected daily loss rejection, got %+v", d)
	}
	if !state.KillSwitch {
		t.Fatal("Kill switch not set")
	}

	// PnL recovered, but the switch stays latched for new risk.
	d = Check(limits, state, Order{Notional: 10, DailyPnL: 50})
	if d.Allowed || d.Reason != ReasonKillSwitch {
		t.Errorf("Expected kill switch rejection, got %+v", d)
	}

	// Reducing exposure is always allowed.
	d = Check(limits, state, Order{Notional: 10, DailyPnL: -500, ReduceOnly: true})
	if !d.Allowed {
		t.Errorf("Reduce-only order rejected: %+v", d)
	}
	if !state.KillSwitch {
		t.Error("Kill switch cleared without Reset")
	}

	state.Reset()
	if d := Check(limits, state, Order{Notional: 10}); !d.Allowed {
		t.Errorf("Order rejected after Reset: %+v", d)
	}
}

func TestCheck_ReduceOnlySetsLatch(t *testing.T) {
	limits := DefaultLimits()
	state := &State{}
	d := Check(limits, state, Order{DailyPnL: -limits.MaxDailyLoss, ReduceOnly: true})
	if !d.Allowed {
		t.Errorf("Reduce-only order rejected: %+v", d)
	}
	if !state.KillSwitch {
		t.Error("Breach during reduce-only order should still latch the kill switch")
	}
}

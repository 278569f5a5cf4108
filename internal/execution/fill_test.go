package execution

import (
	"errors"
	"math"
	"testing"
	"time"

	"trident-trader/internal/domain"
)

func bar(bid, ask *float64) domain.Bar {
	return domain.Bar{TsEnd: time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC), Symbol: "A", Close: 100, Bid: bid, Ask: ask}
}

func TestSimulateFill_CrossesQuotes(t *testing.T) {
	b := bar(domain.Float(99.99), domain.Float(100.01))

	buy, err := SimulateFill(b, domain.SideBuy, 2, 1, 0.2)
	if err != nil {
		t.Fatalf("SimulateFill failed: %v", err)
	}
	wantBuy := 100.01 * (1 + 1e-4)
	if math.Abs(buy.Price-wantBuy) > 1e-9 {
		t.Errorf("Buy price = %v, want %v", buy.Price, wantBuy)
	}
	if math.Abs(buy.Notional-2*wantBuy) > 1e-9 {
		t.Errorf("Notional = %v, want %v", buy.Notional, 2*wantBuy)
	}
	if math.Abs(buy.Fee-buy.Notional*0.2/1e4) > 1e-12 {
		t.Errorf("Fee = %v", buy.Fee)
	}

	sell, _ := SimulateFill(b, domain.SideSell, 2, 1, 0.2)
	wantSell := 99.99 * (1 - 1e-4)
	if math.Abs(sell.Price-wantSell) > 1e-9 {
		t.Errorf("Sell price = %v, want %v", sell.Price, wantSell)
	}
}

func TestSimulateFill_NoQuotesUsesFallbackSpread(t *testing.T) {
	f, err := SimulateFill(bar(nil, nil), domain.SideBuy, 1, 0, 0)
	if err != nil {
		t.Fatalf("SimulateFill failed: %v", err)
	}
	if f.SpreadBps != 2 {
		t.Errorf("SpreadBps = %v, want 2", f.SpreadBps)
	}
	if math.Abs(f.Price-100.01) > 1e-9 {
		t.Errorf("Price = %v, want 100.01", f.Price)
	}
}

func TestSimulateFill_CrossedQuotesUseFallback(t *testing.T) {
	cases := []struct {
		name     string
		bid, ask *float64
	}{
		{"crossed", domain.Float(100.5), domain.Float(99.5)},
		{"non-positive mid", domain.Float(-1), domain.Float(0.5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := bar(tc.bid, tc.ask)
			buy, err := SimulateFill(b, domain.SideBuy, 1, 0, 0)
			if err != nil {
				t.Fatalf("SimulateFill failed: %v", err)
			}
			if buy.SpreadBps != 2 {
				t.Errorf("SpreadBps = %v, want 2", buy.SpreadBps)
			}
			if math.Abs(buy.Price-100.01) > 1e-9 {
				t.Errorf("Buy price = %v, want 100.01", buy.Price)
			}
			sell, _ := SimulateFill(b, domain.SideSell, 1, 0, 0)
			if math.Abs(sell.Price-99.99) > 1e-9 {
				t.Errorf("Sell price = %v, want 99.99", sell.Price)
			}
			if buy.Price <= sell.Price {
				t.Errorf("Buy %v should pay above sell %v", buy.Price, sell.Price)
			}
		})
	}
}

func TestSimulateFill_Validation(t *testing.T) {
	if _, err := SimulateFill(bar(nil, nil), "hold", 1, 0, 0); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("Expected ErrInvalidSide, got %v", err)
	}
	if _, err := SimulateFill(bar(nil, nil), domain.SideBuy, 0, 0, 0); !errors.Is(err, ErrInvalidQty) {
		t.Errorf("Expected ErrInvalidQty, got %v", err)
	}
}

func TestOMS_SymbolMismatch(t *testing.T) {
	oms := NewOMS(domain.ScenarioConfigRealistic)
	_, err := oms.Execute(domain.OrderIntent{Symbol: "B", Side: domain.SideBuy, Qty: 1}, bar(nil, nil))
	if !errors.Is(err, ErrSymbolMismatch) {
		t.Errorf("Expected ErrSymbolMismatch, got %v", err)
	}
}

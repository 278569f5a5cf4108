package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"trident-trader/internal/domain"
)

var t0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func curve(values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Ts: t0.Add(time.Duration(i) * time.Hour), Equity: v}
	}
	return out
}

func TestSummarize(t *testing.T) {
	fills := []domain.Fill{
		{Notional: 100, SpreadBps: 1, SlippageBps: 0.5},
		{Notional: 300, SpreadBps: 3, SlippageBps: 0.5},
	}
	stats := Summarize(curve(100, 120, 90, 110), fills)

	if math.Abs(stats.TotalReturn-0.1) > 1e-12 {
		t.Errorf("TotalReturn = %v, want 0.1", stats.TotalReturn)
	}
	if math.Abs(stats.MaxDrawdown-0.25) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want 0.25", stats.MaxDrawdown)
	}
	if stats.Turnover != 400 {
		t.Errorf("Turnover = %v, want 400", stats.Turnover)
	}
	if stats.AvgSpreadBps != 2 || stats.AvgSlippageBps != 0.5 {
		t.Errorf("Avg spread/slippage = %v/%v, want 2/0.5", stats.AvgSpreadBps, stats.AvgSlippageBps)
	}
	if stats.Fills != 2 {
		t.Errorf("Fills = %d, want 2", stats.Fills)
	}
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil, nil)
	if stats != (domain.RunStats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1}, {0.5, 3}, {0.25, 2}, {1, 5}, {0.1, 1.4},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("computePercentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestAggregateFolds(t *testing.T) {
	folds := []domain.FoldResult{
		{DecisionsTest: 10, ArmedRateTest: 0.5, Stats: domain.RunStats{TotalReturn: 0.02, MaxDrawdown: 0.01, Turnover: 100}},
		{DecisionsTest: 20, ArmedRateTest: 1.0, Stats: domain.RunStats{TotalReturn: -0.01, MaxDrawdown: 0.03, Turnover: 50}},
		{DecisionsTest: 5, ArmedRateTest: 0.0, Stats: domain.RunStats{TotalReturn: 0.05, MaxDrawdown: 0.02}},
	}
	agg, err := AggregateFolds(folds)
	if err != nil {
		t.Fatalf("AggregateFolds failed: %v", err)
	}
	if agg.PositiveFolds != 2 || agg.Folds != 3 {
		t.Errorf("Positive/total = %d/%d, want 2/3", agg.PositiveFolds, agg.Folds)
	}
	if math.Abs(agg.ReturnMean-0.02) > 1e-12 {
		t.Errorf("ReturnMean = %v, want 0.02", agg.ReturnMean)
	}
	if agg.ReturnMedian != 0.02 || agg.ReturnMin != -0.01 || agg.ReturnMax != 0.05 {
		t.Errorf("Median/min/max = %v/%v/%v", agg.ReturnMedian, agg.ReturnMin, agg.ReturnMax)
	}
	if agg.WorstDrawdown != 0.03 {
		t.Errorf("WorstDrawdown = %v, want 0.03", agg.WorstDrawdown)
	}
	if agg.TotalTurnover != 150 || agg.DecisionsTotal != 35 {
		t.Errorf("Turnover/decisions = %v/%d, want 150/35", agg.TotalTurnover, agg.DecisionsTotal)
	}
	if math.Abs(agg.MeanArmedRate-0.5) > 1e-12 {
		t.Errorf("MeanArmedRate = %v, want 0.5", agg.MeanArmedRate)
	}
}

func TestAggregateFolds_Empty(t *testing.T) {
	if _, err := AggregateFolds(nil); !errors.Is(err, ErrNoFolds) {
		t.Errorf("Expected ErrNoFolds, got %v", err)
	}
}

func TestInWindow(t *testing.T) {
	c := curve(1, 2, 3, 4)
	got := InWindow(c, t0.Add(time.Hour), t0.Add(3*time.Hour))
	if len(got) != 2 || got[0].Equity != 2 || got[1].Equity != 3 {
		t.Errorf("InWindow = %v, want equities [2 3]", got)
	}
	fills := []domain.Fill{{Ts: t0}, {Ts: t0.Add(time.Hour)}, {Ts: t0.Add(2 * time.Hour)}}
	if n := len(FillsInWindow(fills, t0.Add(time.Hour), t0.Add(2*time.Hour))); n != 1 {
		t.Errorf("FillsInWindow = %d fills, want 1", n)
	}
}

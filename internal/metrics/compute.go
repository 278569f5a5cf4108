// Package metrics summarises equity curves and walk-forward folds.
package metrics

import (
	"math"
	"sort"

	"trident-trader/internal/domain"
)

// Summarize computes run statistics from an equity curve and its fills.
// The curve must be in chronological order.
//
//   - total_return = (last - first) / first, 0 if first is 0
//   - max_drawdown = MAX((peak - equity) / peak)
//   - turnover = SUM(fill notional)
//   - avg spread / slippage = MEAN over fills
func Summarize(curve []domain.EquityPoint, fills []domain.Fill) domain.RunStats {
	stats := domain.RunStats{Fills: len(fills)}

	spreads := make([]float64, len(fills))
	slippages := make([]float64, len(fills))
	for i, f := range fills {
		stats.Turnover += f.Notional
		spreads[i] = f.SpreadBps
		slippages[i] = f.SlippageBps
	}
	stats.AvgSpreadBps = computeMean(spreads)
	stats.AvgSlippageBps = computeMean(slippages)

	if len(curve) == 0 {
		return stats
	}
	start := curve[0].Equity
	end := curve[len(curve)-1].Equity
	if start != 0 {
		stats.TotalReturn = (end - start) / start
	}
	stats.MaxDrawdown = computeMaxDrawdown(curve)
	return stats
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-relative decline of the curve.
// Peaks at or below zero are skipped.
func computeMaxDrawdown(curve []domain.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDrawdown := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}
	return maxDrawdown
}

// sortedCopy returns values sorted ASC without modifying the input.
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

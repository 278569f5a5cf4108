package metrics

import (
	"errors"
	"time"

	"trident-trader/internal/domain"
)

// ErrNoFolds is returned when no completed folds are available for aggregation.
var ErrNoFolds = errors.New("no completed folds available for aggregation")

// FoldAggregate summarises out-of-sample results across walk-forward folds.
type FoldAggregate struct {
	Folds          int
	PositiveFolds  int
	PositiveRate   float64
	ReturnMean     float64
	ReturnStddev   float64
	ReturnMedian   float64
	ReturnP10      float64
	ReturnP90      float64
	ReturnMin      float64
	ReturnMax      float64
	WorstDrawdown  float64
	TotalTurnover  float64
	MeanArmedRate  float64
	DecisionsTotal int
}

// AggregateFolds computes the cross-fold summary.
// Returns ErrNoFolds if folds is empty.
func AggregateFolds(folds []domain.FoldResult) (FoldAggregate, error) {
	n := len(folds)
	if n == 0 {
		return FoldAggregate{}, ErrNoFolds
	}

	returns := make([]float64, n)
	armed := make([]float64, n)
	agg := FoldAggregate{Folds: n}
	for i, f := range folds {
		returns[i] = f.Stats.TotalReturn
		armed[i] = f.ArmedRateTest
		if f.Stats.TotalReturn > 0 {
			agg.PositiveFolds++
		}
		if f.Stats.MaxDrawdown > agg.WorstDrawdown {
			agg.WorstDrawdown = f.Stats.MaxDrawdown
		}
		agg.TotalTurnover += f.Stats.Turnover
		agg.DecisionsTotal += f.DecisionsTest
	}

	sorted := sortedCopy(returns)
	agg.PositiveRate = float64(agg.PositiveFolds) / float64(n)
	agg.ReturnMean = computeMean(returns)
	agg.ReturnStddev = computeStddev(returns, agg.ReturnMean)
	agg.ReturnMedian = computePercentile(sorted, 0.50)
	agg.ReturnP10 = computePercentile(sorted, 0.10)
	agg.ReturnP90 = computePercentile(sorted, 0.90)
	agg.ReturnMin = sorted[0]
	agg.ReturnMax = sorted[n-1]
	agg.MeanArmedRate = computeMean(armed)
	return agg, nil
}

// InWindow returns equity points with from <= ts < to.
func InWindow(curve []domain.EquityPoint, from, to time.Time) []domain.EquityPoint {
	var out []domain.EquityPoint
	for _, p := range curve {
		if !p.Ts.Before(from) && p.Ts.Before(to) {
			out = append(out, p)
		}
	}
	return out
}

// FillsInWindow returns fills with from <= ts < to.
func FillsInWindow(fills []domain.Fill, from, to time.Time) []domain.Fill {
	var out []domain.Fill
	for _, f := range fills {
		if !f.Ts.Before(from) && f.Ts.Before(to) {
			out = append(out, f)
		}
	}
	return out
}

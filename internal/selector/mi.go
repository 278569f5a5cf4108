package selector

import (
	"math"
	"strconv"

	"trident-trader/internal/features"
)

// MI estimation methods.
const (
	MethodEmpty        = "empty"
	MethodWarmup       = "warmup"
	MethodInsufficient = "insufficient"
	MethodCorrelation  = "correlation"
	MethodHistogram    = "histogram"
)

// minMISamples is the absolute floor below which no estimate is attempted.
const minMISamples = 5

// MIResult is a relevance estimate between features and rewards.
type MIResult struct {
	Value   float64
	Stable  bool
	Samples int
	Method  string
}

// Estimator estimates relevance of feature columns to a target series.
// len(features) == len(targets) >= 5 is guaranteed by callers.
type Estimator interface {
	Estimate(features [][]float64, targets []float64) MIResult
}

// NewEstimator returns the estimator for name ("correlation" or "histogram").
func NewEstimator(name string, bins int) (Estimator, error) {
	switch name {
	case "", MethodCorrelation:
		return CorrelationEstimator{}, nil
	case MethodHistogram:
		if bins < 2 {
			bins = 10
		}
		return HistogramEstimator{Bins: bins}, nil
	}
	return nil, ErrUnknownEstimator
}

// CorrelationEstimator uses the mean absolute Pearson correlation across feature columns.
type CorrelationEstimator struct{}

// Estimate implements Estimator.
func (CorrelationEstimator) Estimate(features [][]float64, targets []float64) MIResult {
	cols := columns(features)
	sum := 0.0
	for _, c := range cols {
		sum += pearsonAbs(c, targets)
	}
	v := 0.0
	if len(cols) > 0 {
		v = sum / float64(len(cols))
	}
	return MIResult{Value: v, Stable: true, Samples: len(targets), Method: MethodCorrelation}
}

// HistogramEstimator discretizes each column and the target into equal-width
// bins and averages the categorical mutual information across columns.
type HistogramEstimator struct {
	Bins int
}

// Estimate implements Estimator.
func (h HistogramEstimator) Estimate(features [][]float64, targets []float64) MIResult {
	cols := columns(features)
	yd := discretize(targets, h.Bins)
	sum := 0.0
	for _, c := range cols {
		sum += categoricalMI(discretize(c, h.Bins), yd)
	}
	v := 0.0
	if len(cols) > 0 {
		v = sum / float64(len(cols))
	}
	return MIResult{Value: v, Stable: true, Samples: len(targets), Method: MethodHistogram}
}

// RollingRelevance estimates over the trailing window of at most window samples.
// Fewer than nMin samples yields an unstable zero result.
func RollingRelevance(est Estimator, features [][]float64, rewards []float64, window, nMin int) MIResult {
	n := min(len(features), len(rewards))
	if n == 0 {
		return MIResult{Method: MethodEmpty}
	}
	x, y := features[len(features)-n:], rewards[len(rewards)-n:]
	if window > 0 && n > window {
		x, y = x[n-window:], y[n-window:]
	}
	if len(x) < nMin {
		return MIResult{Samples: len(x), Method: MethodWarmup}
	}
	if len(x) < minMISamples {
		return MIResult{Samples: len(x), Method: MethodInsufficient}
	}
	return est.Estimate(x, y)
}

func columns(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	for _, r := range rows {
		width = min(width, len(r))
	}
	cols := make([][]float64, width)
	for j := range cols {
		cols[j] = make([]float64, len(rows))
		for i, r := range rows {
			cols[j][i] = r[j]
		}
	}
	return cols
}

func pearsonAbs(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxx, syy, sxy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx <= 0 || syy <= 0 {
		return 0
	}
	return math.Abs(sxy / math.Sqrt(sxx*syy))
}

func discretize(values []float64, bins int) []string {
	out := make([]string, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)
	for i, v := range values {
		idx := 0
		if width > 1e-12 {
			idx = max(0, min(bins-1, int((v-lo)/width)))
		}
		out[i] = strconv.Itoa(idx)
	}
	return out
}

func categoricalMI(x, y []string) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	px := make(map[string]int)
	py := make(map[string]int)
	pxy := make(map[[2]string]int)
	for i := range x {
		px[x[i]]++
		py[y[i]]++
		pxy[[2]string{x[i], y[i]}]++
	}
	mi := 0.0
	fn := float64(n)
	for k, c := range pxy {
		pj := float64(c) / fn
		pa := float64(px[k[0]]) / fn
		pb := float64(py[k[1]]) / fn
		mi += pj * math.Log(pj/(pa*pb)+1e-12)
	}
	return math.Max(0, mi)
}

// MISummary describes the recent MI trajectory.
type MISummary struct {
	Value   float64
	Mean    float64
	Std     float64
	Falling bool
}

// SummarizeMI summarises the last lookback MI values. The latest value is
// falling when it sits more than a quarter standard deviation (floored at
// 1e-6) below the mean of the values before it.
func SummarizeMI(history []float64, lookback int) MISummary {
	if len(history) == 0 || lookback <= 0 {
		return MISummary{}
	}
	window := history[max(0, len(history)-lookback):]
	value := window[len(window)-1]
	std := features.Std(window)
	prevMean := value
	if len(window) > 1 {
		prevMean = features.Mean(window[:len(window)-1])
	}
	return MISummary{
		Value:   value,
		Mean:    features.Mean(window),
		Std:     std,
		Falling: value < prevMean-0.25*math.Max(std, 1e-6),
	}
}

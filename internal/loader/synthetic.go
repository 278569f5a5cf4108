package loader

import (
	"math/rand/v2"
	"time"

	"trident-trader/internal/domain"
)

// SmokeStart is the first bar period start of generated data.
var SmokeStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

// DefaultSmokeSeed seeds GenerateBars in smoke runs.
const DefaultSmokeSeed = 7

// GenerateBars produces a deterministic random walk per symbol. Symbol i
// starts at 100+20i; each step draws a drift in ±0.3%, a range in
// [0.1%, 0.8%], a spread of 0.2 to 0.8 bps and a volume in [200, 2000].
// Bars are returned per symbol in time order.
func GenerateBars(symbols []string, period time.Duration, steps int, seed uint64) [][]domain.Bar {
	rng := rand.New(rand.NewPCG(seed, seed))
	prev := make([]float64, len(symbols))
	out := make([][]domain.Bar, len(symbols))
	for i := range symbols {
		prev[i] = 100 + float64(i)*20
		out[i] = make([]domain.Bar, 0, steps)
	}
	uniform := func(lo, hi float64) float64 { return lo + (hi-lo)*rng.Float64() }

	for step := 0; step < steps; step++ {
		ts := SmokeStart.Add(time.Duration(step+1) * period)
		for i, symbol := range symbols {
			drift := uniform(-0.003, 0.003)
			vol := uniform(0.001, 0.008)
			open := prev[i]
			closePx := max(1, open*(1+drift))
			spread := closePx * uniform(0.00002, 0.00008)
			out[i] = append(out[i], domain.Bar{
				TsEnd:  ts,
				Symbol: symbol,
				Open:   open,
				High:   max(open, closePx) * (1 + vol),
				Low:    min(open, closePx) * (1 - vol),
				Close:  closePx,
				Volume: uniform(200, 2000),
				Bid:    domain.Float(closePx - spread/2),
				Ask:    domain.Float(closePx + spread/2),
			})
			prev[i] = closePx
		}
	}
	return out
}

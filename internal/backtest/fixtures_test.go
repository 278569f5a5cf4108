package backtest

import (
	"iter"
	"math"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/gate"
	"trident-trader/internal/replay"
)

var start = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

var testPeriods = Periods{Fast: 5 * time.Minute, Medium: time.Hour, Slow: 24 * time.Hour}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// spreadBars builds 120 one-minute bars with a tight spread that widens to
// 10 bps from index wideAfter on (never when wideAfter < 0).
func spreadBars(symbol string, wideAfter int) []domain.Bar {
	bars := make([]domain.Bar, 0, 120)
	for idx := 0; idx < 120; idx++ {
		closePx := 100.0 + 0.01*float64(idx)
		spreadBps := 0.5
		if wideAfter >= 0 && idx >= wideAfter {
			spreadBps = 10
		}
		half := closePx * spreadBps / 1e4 / 2
		bars = append(bars, domain.Bar{
			TsEnd:  start.Add(time.Duration(idx+1) * time.Minute),
			Symbol: symbol,
			Open:   round6(closePx),
			High:   round6(closePx + 0.02),
			Low:    round6(closePx - 0.02),
			Close:  round6(closePx),
			Volume: 1000,
			Bid:    domain.Float(round6(closePx - half)),
			Ask:    domain.Float(round6(closePx + half)),
		})
	}
	return bars
}

// driftBars builds 120 one-minute bars drifting up by 0.5 bps per minute.
func driftBars(symbol string) []domain.Bar {
	bars := make([]domain.Bar, 0, 120)
	closePx := 100.0
	for i := 0; i < 120; i++ {
		closePx *= 1.00005
		bars = append(bars, domain.Bar{
			TsEnd:  start.Add(time.Duration(i+1) * time.Minute),
			Symbol: symbol,
			Open:   closePx,
			High:   closePx * 1.0002,
			Low:    closePx * 0.9998,
			Close:  closePx,
			Volume: 1200,
			Bid:    domain.Float(closePx - 0.005),
			Ask:    domain.Float(closePx + 0.005),
		})
	}
	return bars
}

func spreadGateConfig() gate.Config {
	return gate.Config{
		KOfN:            2,
		MinLambdaStream: 0.65,
		MinLambdaGlobal: 0.65,
		Weights:         gate.Weights{Liquidity: 0.4, Integrity: 0.25, Stability: 0.25, EventPenalty: 0.1},
		Liquidity:       gate.LiquidityConfig{UseBidAskIfAvailable: true, MaxSpreadBps: 2.5, MinVolumeZ: -0.8},
		Integrity:       gate.IntegrityConfig{MaxGapRate: 0.002, MaxOutlierRate: 0.001},
		Stability:       gate.StabilityConfig{MaxVolOfVol: 2.0, MaxCorrShock: 0.35},
		EventPenalty:    gate.EventPenaltyConfig{Enabled: false, MaxEventIntensityZ: 1.5},
	}
}

func newsGateConfig() gate.Config {
	return gate.Config{
		KOfN:            2,
		MinLambdaStream: 0.30,
		MinLambdaGlobal: 0.30,
		Weights:         gate.Weights{Liquidity: 0.25, Integrity: 0.15, Stability: 0.10, EventPenalty: 0.50},
		Liquidity:       gate.LiquidityConfig{UseBidAskIfAvailable: true, MaxSpreadBps: 2.5, MinVolumeZ: -0.8},
		Integrity:       gate.IntegrityConfig{MaxGapRate: 0.01, MaxOutlierRate: 0.02},
		Stability:       gate.StabilityConfig{MaxVolOfVol: 2.0, MaxCorrShock: 0.50},
		EventPenalty:    gate.EventPenaltyConfig{Enabled: true, MaxEventIntensityZ: 0.1},
	}
}

func spreadEvents() iter.Seq[replay.Event] {
	return replay.Merge(replay.BarSeq(spreadBars("A", -1)), replay.BarSeq(spreadBars("B", 60)))
}

func newsEvents() iter.Seq[replay.Event] {
	news := []domain.NewsEvent{
		{Ts: time.Date(2025, 1, 6, 1, 10, 0, 0, time.UTC), Source: domain.NewsSourceGDELT, Intensity: 500},
		{Ts: time.Date(2025, 1, 6, 1, 20, 0, 0, time.UTC), Source: domain.NewsSourceGDELT, Intensity: 500},
	}
	return replay.Merge(replay.BarSeq(driftBars("A")), replay.BarSeq(driftBars("B")), replay.NewsSeq(news))
}

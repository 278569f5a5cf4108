package control

import "trident-trader/internal/features"

// LoadInputs are the observed stresses on the strategy.
type LoadInputs struct {
	RealizedVol      float64
	DrawdownVelocity float64
	ErrorRate        float64
	SlippageSpike    float64
}

// BurdenInputs are the stresses the strategy expects to carry.
type BurdenInputs struct {
	ForecastVol      float64
	ExpectedSlippage float64
	EventRisk        float64
}

// Load returns the observed load in [0, 1]:
//
//	0.35*CLAMP01(rv/2) + 0.30*CLAMP01(dd_vel) + 0.20*CLAMP01(err_rate) + 0.15*CLAMP01(slip_spike)
func Load(in LoadInputs) float64 {
	return 0.35*features.Clamp01(in.RealizedVol/2) +
		0.30*features.Clamp01(in.DrawdownVelocity) +
		0.20*features.Clamp01(in.ErrorRate) +
		0.15*features.Clamp01(in.SlippageSpike)
}

// ExpectedBurden returns the expected load in [0, 1]:
//
//	0.5*CLAMP01(fvol/2) + 0.3*CLAMP01(exp_slip) + 0.2*CLAMP01(event_risk)
func ExpectedBurden(in BurdenInputs) float64 {
	return 0.5*features.Clamp01(in.ForecastVol/2) +
		0.3*features.Clamp01(in.ExpectedSlippage) +
		0.2*features.Clamp01(in.EventRisk)
}

// Mismatch is load minus expected burden. Positive values mean the strategy
// carries more than it planned for.
func Mismatch(load, burden float64) float64 {
	return load - burden
}

// Package regime labels the market state from slow-timescale volatility and
// cross-sectional dislocation.
package regime

import "trident-trader/internal/features"

// Regime labels.
const (
	Calm     = "calm"
	Volatile = "volatile"
	Shock    = "shock"
)

// Stress thresholds.
const (
	ShockStress    = 0.75
	VolatileStress = 0.45
)

// Features are the classifier inputs.
type Features struct {
	RealizedVol float64 // percent range of the slow bar
	VolOfVol    float64
	CorrSpike   float64
}

// State is a regime label with a confidence in [0, 1].
type State struct {
	Label      string
	Confidence float64
	Stress     float64
}

// Stress combines the inputs into [0, 1]:
//
//	0.45*CLAMP01(rv/2) + 0.35*CLAMP01(vov/1.2) + 0.20*CLAMP01(corr_spike)
func Stress(f Features) float64 {
	return 0.45*features.Clamp01(f.RealizedVol/2) +
		0.35*features.Clamp01(f.VolOfVol/1.2) +
		0.20*features.Clamp01(f.CorrSpike)
}

// Classify returns shock at stress >= 0.75, volatile at >= 0.45, else calm.
// Stressed labels carry the stress as confidence, calm carries 1 - stress.
func Classify(f Features) State {
	stress := Stress(f)
	switch {
	case stress >= ShockStress:
		return State{Label: Shock, Confidence: stress, Stress: stress}
	case stress >= VolatileStress:
		return State{Label: Volatile, Confidence: stress, Stress: stress}
	default:
		return State{Label: Calm, Confidence: 1 - stress, Stress: stress}
	}
}

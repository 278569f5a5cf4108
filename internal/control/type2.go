package control

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Type2Config bounds when a structural (type-2) update is warranted.
type Type2Config struct {
	MismatchThreshold   float64 `yaml:"mismatch_threshold" default:"0.20" validate:"gt=0"`
	PersistentWindow    int     `yaml:"persistent_window" default:"6" validate:"gte=1"`
	MinPersistentPoints int     `yaml:"min_persistent_points" default:"4" validate:"gte=1,ltefield=PersistentWindow"`
	MinLambdaWorld      float64 `yaml:"min_lambda_world" default:"0.35" validate:"gte=0,lte=1"`
	MinMIDrop           float64 `yaml:"min_mi_drop" default:"0.02" validate:"gte=0"`
	ProposalScale       float64 `yaml:"proposal_scale" default:"0.05" validate:"gt=0"`
	ProposalDoF         int     `yaml:"proposal_dof" default:"3" validate:"gte=1"`
	TailK               int     `yaml:"tail_k" default:"5" validate:"gte=1"`
}

// DefaultType2Config returns the default type-2 thresholds.
func DefaultType2Config() Type2Config {
	return Type2Config{
		MismatchThreshold:   0.20,
		PersistentWindow:    6,
		MinPersistentPoints: 4,
		MinLambdaWorld:      0.35,
		MinMIDrop:           0.02,
		ProposalScale:       0.05,
		ProposalDoF:         3,
		TailK:               5,
	}
}

// PersistentMismatch reports whether at least MinPersistentPoints of the last
// PersistentWindow mismatches reach the threshold in magnitude.
func PersistentMismatch(history []float64, cfg Type2Config) bool {
	recent := history[max(0, len(history)-cfg.PersistentWindow):]
	n := 0
	for _, v := range recent {
		if math.Abs(v) >= cfg.MismatchThreshold {
			n++
		}
	}
	return n >= cfg.MinPersistentPoints
}

// MIFalling reports whether the latest MI is at least MinMIDrop below the
// mean of the two before it.
func MIFalling(history []float64, cfg Type2Config) bool {
	n := len(history)
	if n < 3 {
		return false
	}
	prev := (history[n-3] + history[n-2]) / 2
	return history[n-1] <= prev-cfg.MinMIDrop
}

// ShouldTriggerType2 requires a persistent mismatch, falling MI and a world
// that is still learnable (lambda at or above MinLambdaWorld).
func ShouldTriggerType2(mismatch, mi []float64, lambda float64, cfg Type2Config) bool {
	return PersistentMismatch(mismatch, cfg) && MIFalling(mi, cfg) && lambda >= cfg.MinLambdaWorld
}

// ProposeHeavyTailStep draws a Student-t step with dof degrees of freedom
// scaled by scale.
func ProposeHeavyTailStep(rng *rand.Rand, scale float64, dof int) float64 {
	z := rng.NormFloat64()
	chi2 := 0.0
	for range dof {
		g := rng.NormFloat64()
		chi2 += g * g
	}
	if chi2 == 0 {
		return 0
	}
	return z / math.Sqrt(chi2/float64(dof)) * scale
}

// AcceptType2Proposal accepts a proposal that passes risk and improves either
// MI or prediction.
func AcceptType2Proposal(miGain, predGain float64, riskOK bool) bool {
	return riskOK && (miGain > 0 || predGain > 0)
}

// InterEventTimes returns the gaps between successive event times.
func InterEventTimes(times []float64) []float64 {
	if len(times) < 2 {
		return nil
	}
	out := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		out[i-1] = times[i] - times[i-1]
	}
	return out
}

// HillTailExponent estimates the tail index from the k largest magnitudes.
// It returns 0 with k or fewer positive samples.
func HillTailExponent(samples []float64, k int) float64 {
	pos := make([]float64, 0, len(samples))
	for _, v := range samples {
		if a := math.Abs(v); a > 0 {
			pos = append(pos, a)
		}
	}
	if k <= 0 || len(pos) <= k {
		return 0
	}
	slices.SortFunc(pos, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})
	xk := pos[k]
	s := 0.0
	for _, x := range pos[:k] {
		s += math.Log(x / xk)
	}
	if s <= 0 {
		return 0
	}
	return float64(k) / s
}

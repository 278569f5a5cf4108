package selector

import "math"

// Softmax returns exp(s/tau) normalized. tau is floored at 1e-6.
func Softmax(scores []float64, tau float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	tau = math.Max(1e-6, tau)
	m := math.Inf(-1)
	for _, s := range scores {
		m = math.Max(m, s/tau)
	}
	out := make([]float64, len(scores))
	total := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s/tau - m)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// ShannonEntropy returns -sum(p ln p) in nats.
func ShannonEntropy(probs []float64) float64 {
	h := 0.0
	for _, p := range probs {
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h
}

// NormalizedEntropy scales entropy by ln(n) into [0, 1].
func NormalizedEntropy(probs []float64) float64 {
	if len(probs) < 2 {
		return 0
	}
	return ShannonEntropy(probs) / math.Log(float64(len(probs)))
}

// UpdateTemperature applies tau += step*(target-entropy), clamped to [tauMin, tauMax].
func UpdateTemperature(tau, entropy, target, step, tauMin, tauMax float64) float64 {
	return clamp(tau+step*(target-entropy), tauMin, tauMax)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

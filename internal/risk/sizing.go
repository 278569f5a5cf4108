package risk

import (
	"math"

	"trident-trader/internal/control"
	"trident-trader/internal/features"
)

// zoneBase is the share of the type-1 budget each zone allows.
var zoneBase = map[string]float64{
	control.ZoneReset: 0,
	control.ZoneLight: 0.4,
	control.ZoneFull:  1,
}

// unknownZoneBase applies to a zone with no entry in zoneBase.
const unknownZoneBase = 0.2

// Type1RiskMultiplier scales position risk by zone, gate confidence and
// mismatch:
//
//	base(zone) * (0.3 + 0.7*CLAMP01(lambda)) * MAX(0, 1 - MIN(1, |mismatch|/0.5))
func Type1RiskMultiplier(zone string, lambda, mismatchAbs float64) float64 {
	base, ok := zoneBase[zone]
	if !ok {
		base = unknownZoneBase
	}
	confidence := 0.3 + 0.7*features.Clamp01(lambda)
	damp := math.Max(0, 1-math.Min(1, math.Abs(mismatchAbs)/0.5))
	return base * confidence * damp
}

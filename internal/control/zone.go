package control

// Zones gate how much of the type-1 risk budget is available.
const (
	ZoneReset = "reset"
	ZoneLight = "light"
	ZoneFull  = "full"
)

// Zone thresholds.
const (
	ResetMismatch = 1.5
	ResetLoad     = 1.5
	LightLambda   = 0.4
)

// SelectZone returns reset when mismatch or load exceed 1.5, light when
// lambda is below 0.4, else full.
func SelectZone(lambda, load, mismatch float64) string {
	switch {
	case mismatch > ResetMismatch || load > ResetLoad:
		return ZoneReset
	case lambda < LightLambda:
		return ZoneLight
	default:
		return ZoneFull
	}
}

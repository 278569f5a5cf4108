// Package control derives the structural mismatch, zone, type-2 trigger and
// explore/exploit pressures that accompany each trading decision.
package control

// Config groups the control-layer parameters.
type Config struct {
	Type2      Type2Config      `yaml:"type2"`
	Controller ControllerConfig `yaml:"controller"`
	MILookback int              `yaml:"mi_lookback" default:"20" validate:"gte=2"`
	TailWindow int              `yaml:"tail_window" default:"64" validate:"gte=2"`
	Seed       uint64           `yaml:"seed" default:"17"`
}

// DefaultConfig returns the default control parameters.
func DefaultConfig() Config {
	return Config{
		Type2:      DefaultType2Config(),
		Controller: DefaultControllerConfig(),
		MILookback: 20,
		TailWindow: 64,
		Seed:       17,
	}
}

package control

import (
	"math"

	"trident-trader/internal/features"
	"trident-trader/internal/selector"
)

// Modes reported by the controller.
const (
	ModeExplore = "explore"
	ModeExploit = "exploit"
)

// ControllerConfig tunes the entropy/MI controller.
type ControllerConfig struct {
	EntropyTarget float64 `yaml:"entropy_target" default:"0.72" validate:"gte=0,lte=1"`
	TauInit       float64 `yaml:"tau_init" default:"1.0" validate:"gt=0"`
	TauStep       float64 `yaml:"tau_step" default:"0.25" validate:"gte=0"`
	TauMin        float64 `yaml:"tau_min" default:"0.3" validate:"gt=0"`
	TauMax        float64 `yaml:"tau_max" default:"3.0" validate:"gtefield=TauMin"`
	MIFloor       float64 `yaml:"mi_floor" default:"0.05" validate:"gt=0"`
	MismatchAlert float64 `yaml:"mismatch_alert" default:"0.18" validate:"gte=0"`
}

// DefaultControllerConfig returns the default controller parameters.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		EntropyTarget: 0.72,
		TauInit:       1.0,
		TauStep:       0.25,
		TauMin:        0.3,
		TauMax:        3.0,
		MIFloor:       0.05,
		MismatchAlert: 0.18,
	}
}

// ControllerInput is one controller observation.
type ControllerInput struct {
	Scores     []float64 // per-operator policy scores
	SignalMI   float64
	OperatorMI float64
	Mismatch   float64
	Lambda     float64
}

// ControllerState is the controller output for one step.
type ControllerState struct {
	Mode            string
	Temperature     float64
	PolicyEntropy   float64
	MIScore         float64
	ExplorePressure float64
	ExploitPressure float64
}

// Controller balances exploration against exploitation from policy entropy,
// information and mismatch. Not safe for concurrent use.
type Controller struct {
	cfg ControllerConfig
	tau float64
}

// NewController creates a controller at TauInit.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{cfg: cfg, tau: cfg.TauInit}
}

// Temperature returns the current temperature.
func (c *Controller) Temperature() float64 {
	return c.tau
}

// Nudge shifts the temperature by delta within [TauMin, TauMax].
func (c *Controller) Nudge(delta float64) {
	c.tau = math.Max(c.cfg.TauMin, math.Min(c.cfg.TauMax, c.tau+delta))
}

// Step updates the temperature and returns the pressures:
//
//   - mi       = MAX(0, 0.6*signal_mi + 0.4*operator_mi)
//   - explore  = MIN(1, 0.45*(target-H+1)/2 + 0.35*mismatch_pressure + 0.2*mi_deficit)
//   - exploit  = CLAMP01(0.6*mi + 0.3*lambda - 0.3*mismatch_pressure)
//   - mode     = explore when mi < floor or |mismatch| > alert
func (c *Controller) Step(in ControllerInput) ControllerState {
	cfg := c.cfg
	probs := selector.Softmax(in.Scores, c.tau)
	h := selector.NormalizedEntropy(probs)
	c.tau = selector.UpdateTemperature(c.tau, h, cfg.EntropyTarget, cfg.TauStep, cfg.TauMin, cfg.TauMax)

	mi := math.Max(0, 0.6*in.SignalMI+0.4*in.OperatorMI)
	mismatchPressure := features.Clamp01(math.Abs(in.Mismatch) / 0.5)
	miDeficit := features.Clamp01((cfg.MIFloor - mi) / cfg.MIFloor)

	explore := math.Min(1, 0.45*(cfg.EntropyTarget-h+1)/2+0.35*mismatchPressure+0.2*miDeficit)
	exploit := features.Clamp01(0.6*mi + 0.3*in.Lambda - 0.3*mismatchPressure)

	mode := ModeExploit
	if mi < cfg.MIFloor || math.Abs(in.Mismatch) > cfg.MismatchAlert {
		mode = ModeExplore
	}
	return ControllerState{
		Mode:            mode,
		Temperature:     c.tau,
		PolicyEntropy:   h,
		MIScore:         mi,
		ExplorePressure: explore,
		ExploitPressure: exploit,
	}
}

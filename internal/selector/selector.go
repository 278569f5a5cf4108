// Package selector chooses a trading operator with entropy-regulated softmax
// sampling driven by reward history relevance and model uncertainty.
package selector

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// OperatorFlat is returned when trading is not armed.
const OperatorFlat = "flat"

// Operator names.
const (
	OperatorMeanReversion = "mean_reversion"
	OperatorBreakout      = "breakout"
)

var (
	// ErrNoOperators is returned when the operator set is empty.
	ErrNoOperators = errors.New("selector requires at least one operator")
	// ErrUnknownEstimator is returned for an unrecognised MI estimator name.
	ErrUnknownEstimator = errors.New("unknown mutual information estimator")
)

// Config holds selector parameters.
type Config struct {
	Operators           []string `yaml:"operators" validate:"min=1,dive,required"`
	EntropyTarget       float64  `yaml:"entropy_target" default:"0.72" validate:"gte=0,lte=1"`
	TauInit             float64  `yaml:"tau_init" default:"1.0" validate:"gt=0"`
	TauMin              float64  `yaml:"tau_min" default:"0.3" validate:"gt=0"`
	TauMax              float64  `yaml:"tau_max" default:"3.0" validate:"gtefield=TauMin"`
	TauStep             float64  `yaml:"tau_step" default:"0.2" validate:"gte=0"`
	MIMin               float64  `yaml:"mi_min" default:"0.02"`
	MIWindow            int      `yaml:"mi_window" default:"240" validate:"gte=1"`
	MINMin              int      `yaml:"mi_n_min" default:"200" validate:"gte=0"`
	MismatchAlert       float64  `yaml:"mismatch_alert" default:"0.15"`
	SRUncertaintyWeight float64  `yaml:"sr_uncertainty_weight" default:"0.6" validate:"gte=0"`
	QDecay              float64  `yaml:"q_decay" default:"0.9" validate:"gte=0,lt=1"`
	Estimator           string   `yaml:"estimator" default:"correlation" validate:"oneof=correlation histogram"`
	HistogramBins       int      `yaml:"histogram_bins" default:"10" validate:"gte=2"`
	Seed                uint64   `yaml:"seed" default:"11"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Operators:           []string{OperatorMeanReversion, OperatorBreakout},
		EntropyTarget:       0.72,
		TauInit:             1.0,
		TauMin:              0.3,
		TauMax:              3.0,
		TauStep:             0.2,
		MIMin:               0.02,
		MIWindow:            240,
		MINMin:              200,
		MismatchAlert:       0.15,
		SRUncertaintyWeight: 0.6,
		QDecay:              0.9,
		Estimator:           MethodCorrelation,
		HistogramBins:       10,
		Seed:                11,
	}
}

// Selection is the outcome of one Select call.
type Selection struct {
	Operator      string
	MI            MIResult
	Temperature   float64
	PolicyEntropy float64
	Probs         []float64
}

// Selector holds per-operator value estimates, the temperature and a bounded
// history of feature vectors and rewards.
type Selector struct {
	cfg Config
	est Estimator
	rng *rand.Rand

	q   map[string]float64
	tau float64

	features [][]float64
	rewards  []float64
}

// New creates a selector. The random source is seeded from cfg.Seed.
func New(cfg Config) (*Selector, error) {
	if len(cfg.Operators) == 0 {
		return nil, ErrNoOperators
	}
	est, err := NewEstimator(cfg.Estimator, cfg.HistogramBins)
	if err != nil {
		return nil, err
	}
	q := make(map[string]float64, len(cfg.Operators))
	for _, op := range cfg.Operators {
		q[op] = 0
	}
	return &Selector{
		cfg: cfg,
		est: est,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		q:   q,
		tau: cfg.TauInit,
	}, nil
}

// Temperature returns the current softmax temperature.
func (s *Selector) Temperature() float64 {
	return s.tau
}

// Q returns the value estimate for op.
func (s *Selector) Q(op string) float64 {
	return s.q[op]
}

// Observe attributes reward to op and appends the sample to history.
// Unknown operators (including flat) only extend history.
func (s *Selector) Observe(op string, reward float64, features []float64) {
	if v, ok := s.q[op]; ok {
		s.q[op] = s.cfg.QDecay*v + (1-s.cfg.QDecay)*reward
	}
	s.features = append(s.features, slices.Clone(features))
	s.rewards = append(s.rewards, reward)
	if extra := len(s.rewards) - s.cfg.MIWindow; extra > 0 {
		s.features = slices.Delete(s.features, 0, extra)
		s.rewards = slices.Delete(s.rewards, 0, extra)
	}
}

// Select picks an operator. When not armed it returns flat without touching
// the temperature or the random source.
//
// Temperature control, in order:
//   - tau += step*(target - H(softmax(Q/tau))), clamped
//   - tau += step if MI is unstable, below MIMin, or mismatch > MismatchAlert;
//     otherwise tau -= step/2, clamped
//   - tau += SRUncertaintyWeight*uncertainty, capped at TauMax
func (s *Selector) Select(armed bool, mismatch float64, features []float64, srUncertainty float64) Selection {
	if !armed {
		return Selection{Operator: OperatorFlat, Temperature: s.tau}
	}
	cfg := s.cfg

	scores := make([]float64, len(cfg.Operators))
	for i, op := range cfg.Operators {
		scores[i] = s.q[op]
	}
	h := NormalizedEntropy(Softmax(scores, s.tau))
	s.tau = UpdateTemperature(s.tau, h, cfg.EntropyTarget, cfg.TauStep, cfg.TauMin, cfg.TauMax)

	hist := append(slices.Clip(s.features), features)
	rew := append(slices.Clip(s.rewards), 0)
	mi := RollingRelevance(s.est, hist, rew, cfg.MIWindow, cfg.MINMin)
	if !mi.Stable || mi.Value < cfg.MIMin || mismatch > cfg.MismatchAlert {
		s.tau = min(cfg.TauMax, s.tau+cfg.TauStep)
	} else {
		s.tau = max(cfg.TauMin, s.tau-0.5*cfg.TauStep)
	}
	s.tau = min(cfg.TauMax, s.tau+cfg.SRUncertaintyWeight*max(0, srUncertainty))

	probs := Softmax(scores, s.tau)
	return Selection{
		Operator:      cfg.Operators[s.sample(probs)],
		MI:            mi,
		Temperature:   s.tau,
		PolicyEntropy: NormalizedEntropy(probs),
		Probs:         probs,
	}
}

func (s *Selector) sample(probs []float64) int {
	u := s.rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if u < acc {
			return i
		}
	}
	return len(probs) - 1
}

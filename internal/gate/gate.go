// Package gate scores per-symbol market viability and arms trading when
// enough symbols are viable.
package gate

import (
	"math"
	"slices"

	"trident-trader/internal/domain"
	"trident-trader/internal/features"
)

// FallbackSpreadBps is used when a bar carries no usable quotes.
const FallbackSpreadBps = 2.0

// Weights combine the component scores.
type Weights struct {
	Liquidity    float64 `yaml:"liquidity" default:"0.4" validate:"gte=0"`
	Integrity    float64 `yaml:"integrity" default:"0.25" validate:"gte=0"`
	Stability    float64 `yaml:"stability" default:"0.25" validate:"gte=0"`
	EventPenalty float64 `yaml:"event_penalty" default:"0.1" validate:"gte=0"`
}

// LiquidityConfig bounds spread and volume.
type LiquidityConfig struct {
	UseBidAskIfAvailable bool    `yaml:"use_bid_ask_if_available" default:"true"`
	MaxSpreadBps         float64 `yaml:"max_spread_bps" default:"2.5" validate:"gt=0"`
	MinVolumeZ           float64 `yaml:"min_volume_z" default:"-0.8"`
}

// IntegrityConfig bounds data quality.
type IntegrityConfig struct {
	MaxGapRate     float64 `yaml:"max_gap_rate" default:"0.002" validate:"gt=0"`
	MaxOutlierRate float64 `yaml:"max_outlier_rate" default:"0.001" validate:"gt=0"`
}

// StabilityConfig bounds volatility regime and cross-sectional dislocation.
type StabilityConfig struct {
	MaxVolOfVol  float64 `yaml:"max_vol_of_vol" default:"2.0" validate:"gt=0"`
	MaxCorrShock float64 `yaml:"max_corr_shock" default:"0.35" validate:"gt=0"`
}

// EventPenaltyConfig penalises abnormal news intensity.
type EventPenaltyConfig struct {
	Enabled            bool    `yaml:"enabled"`
	MaxEventIntensityZ float64 `yaml:"max_event_intensity_z" default:"1.5"`
}

// Config holds the gate thresholds.
type Config struct {
	KOfN            int                `yaml:"k_of_n" default:"2" validate:"gte=1"`
	MinLambdaStream float64            `yaml:"min_lambda_stream" default:"0.65" validate:"gte=0,lte=1"`
	MinLambdaGlobal float64            `yaml:"min_lambda_global" default:"0.65" validate:"gte=0,lte=1"`
	Weights         Weights            `yaml:"weights"`
	Liquidity       LiquidityConfig    `yaml:"liquidity"`
	Integrity       IntegrityConfig    `yaml:"integrity"`
	Stability       StabilityConfig    `yaml:"stability"`
	EventPenalty    EventPenaltyConfig `yaml:"event_penalty"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		KOfN:            2,
		MinLambdaStream: 0.65,
		MinLambdaGlobal: 0.65,
		Weights:         Weights{Liquidity: 0.4, Integrity: 0.25, Stability: 0.25, EventPenalty: 0.1},
		Liquidity:       LiquidityConfig{UseBidAskIfAvailable: true, MaxSpreadBps: 2.5, MinVolumeZ: -0.8},
		Integrity:       IntegrityConfig{MaxGapRate: 0.002, MaxOutlierRate: 0.001},
		Stability:       StabilityConfig{MaxVolOfVol: 2.0, MaxCorrShock: 0.35},
		EventPenalty:    EventPenaltyConfig{Enabled: false, MaxEventIntensityZ: 1.5},
	}
}

// Inputs are the per-symbol observations scored by the gate.
type Inputs struct {
	SpreadBps       float64
	VolumeZ         float64
	GapRate         float64
	OutlierRate     float64
	VolOfVol        float64
	CorrShock       float64
	EventIntensityZ float64
	LastReturn      float64
}

// Result is the gate outcome for one decision step.
type Result struct {
	PerStream    map[string]float64
	Inputs       map[string]Inputs
	LambdaGlobal float64
	GoodStreams  int
	Armed        bool
}

// SpreadBps returns the quoted spread of bar in bps of mid, or FallbackSpreadBps
// when quotes are absent, crossed, or not to be used.
func SpreadBps(bar domain.Bar, useQuotes bool) float64 {
	if !useQuotes || !UsableQuotes(bar) {
		return FallbackSpreadBps
	}
	bid, ask := *bar.Bid, *bar.Ask
	return (ask - bid) / (0.5 * (bid + ask)) * 1e4
}

// UsableQuotes reports whether bar carries quotes with a positive mid that
// are not crossed.
func UsableQuotes(bar domain.Bar) bool {
	if !bar.HasQuotes() {
		return false
	}
	bid, ask := *bar.Bid, *bar.Ask
	return bid+ask > 0 && ask >= bid
}

// Score maps inputs to a viability score in [0, 1].
//
//   - liquidity = MIN(spread score, volume score)
//   - integrity = MEAN(gap score, outlier score)
//   - stability = MEAN(vol-of-vol score, corr-shock score)
//   - penalty   = excess event intensity z over its limit, only when enabled
//   - score     = CLAMP01(wL*liquidity + wI*integrity + wS*stability - wE*penalty)
func Score(in Inputs, cfg Config) float64 {
	spreadScore := features.Clamp01(1 - in.SpreadBps/cfg.Liquidity.MaxSpreadBps)
	volumeScore := 1.0
	if in.VolumeZ < cfg.Liquidity.MinVolumeZ {
		volumeScore = features.Clamp01(1 - (cfg.Liquidity.MinVolumeZ - in.VolumeZ))
	}
	liquidity := math.Min(spreadScore, volumeScore)

	integrity := 0.5*features.Clamp01(1-in.GapRate/cfg.Integrity.MaxGapRate) +
		0.5*features.Clamp01(1-in.OutlierRate/cfg.Integrity.MaxOutlierRate)

	stability := 0.5*features.Clamp01(1-in.VolOfVol/cfg.Stability.MaxVolOfVol) +
		0.5*features.Clamp01(1-in.CorrShock/cfg.Stability.MaxCorrShock)

	penalty := 0.0
	if cfg.EventPenalty.Enabled {
		limit := cfg.EventPenalty.MaxEventIntensityZ
		penalty = features.Clamp01((in.EventIntensityZ - limit) / math.Max(math.Abs(limit), 1))
	}

	w := cfg.Weights
	return features.Clamp01(w.Liquidity*liquidity + w.Integrity*integrity + w.Stability*stability - w.EventPenalty*penalty)
}

// Evaluate scores every symbol that has both a bar and metrics and derives the
// global gate state. symbols fixes iteration order.
//
// corr_shock for a symbol is |last_return - MEDIAN(last_returns)| * 100.
// lambda_global is the MEDIAN of per-symbol scores. Both medians take the
// upper middle element for an even count.
func Evaluate(cfg Config, symbols []string, bars map[string]domain.Bar, metrics map[string]features.Metrics) Result {
	returns := make([]float64, 0, len(symbols))
	for _, s := range symbols {
		if m, ok := metrics[s]; ok {
			returns = append(returns, m.LastReturn)
		}
	}
	retMedian := upperMedian(returns)

	res := Result{
		PerStream: make(map[string]float64, len(symbols)),
		Inputs:    make(map[string]Inputs, len(symbols)),
	}
	scores := make([]float64, 0, len(symbols))
	for _, s := range symbols {
		bar, okBar := bars[s]
		m, okM := metrics[s]
		if !okBar || !okM {
			continue
		}
		in := Inputs{
			SpreadBps:       SpreadBps(bar, cfg.Liquidity.UseBidAskIfAvailable),
			VolumeZ:         m.VolumeZ,
			GapRate:         m.GapRate,
			OutlierRate:     m.OutlierRate,
			VolOfVol:        m.VolOfVol,
			CorrShock:       math.Abs(m.LastReturn-retMedian) * 100,
			EventIntensityZ: m.EventIntensityZ,
			LastReturn:      m.LastReturn,
		}
		score := Score(in, cfg)
		res.Inputs[s] = in
		res.PerStream[s] = score
		scores = append(scores, score)
		if score >= cfg.MinLambdaStream {
			res.GoodStreams++
		}
	}

	res.LambdaGlobal = upperMedian(scores)
	res.Armed = res.GoodStreams >= cfg.KOfN && res.LambdaGlobal >= cfg.MinLambdaGlobal
	return res
}

// upperMedian returns sorted(values)[n/2], 0 if empty.
func upperMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	data := slices.Clone(values)
	slices.Sort(data)
	return data[len(data)/2]
}

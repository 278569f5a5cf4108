package backtest

import (
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"trident-trader/internal/control"
	"trident-trader/internal/domain"
	"trident-trader/internal/features"
	"trident-trader/internal/gate"
	"trident-trader/internal/regime"
	"trident-trader/internal/risk"
	"trident-trader/internal/selector"
)

// controlInputs are the per-step observations the control layer needs
// beyond the step itself.
type controlInputs struct {
	Equity     float64
	PrevEquity float64
	Fills      int
	Rejected   int
	SignalMI   float64
	TDError    float64
	Q          func(op string) float64 // nil scores every operator 0
	KillSwitch bool
}

// controlOutput is the diagnostics block of one decision record.
type controlOutput struct {
	Regime         regime.State
	Zone           string
	Load           float64
	Mismatch       float64
	RiskMultiplier float64
	Type2          bool
	Type2Accepted  bool
	MIFalling      bool
	Controller     control.ControllerState
	PolicyHint     string
}

// controlLayer keeps the bounded histories behind the control diagnostics.
// The diagnostics are recorded with each decision and do not size trades.
// Policy candidates are flat followed by the selector's operators.
type controlLayer struct {
	cfg        control.Config
	gateCfg    gate.Config
	slipBps    float64
	operators  []string
	symbols    []string
	controller *control.Controller
	rng        *rand.Rand
	logger     zerolog.Logger

	steps       int
	mismatch    []float64 // last Type2.PersistentWindow values
	mi          []float64 // last MILookback values
	tail        []float64 // last TailWindow mismatches
	triggers    []float64 // step indices of type-2 triggers
	prevTDError float64
	hasTDError  bool
}

func newControlLayer(cfg Config, logger zerolog.Logger) *controlLayer {
	seed := cfg.Control.Seed
	operators := []string{selector.OperatorFlat}
	for _, op := range cfg.Selector.Operators {
		if op != selector.OperatorFlat {
			operators = append(operators, op)
		}
	}
	return &controlLayer{
		cfg:        cfg.Control,
		gateCfg:    cfg.Engine.Gate,
		slipBps:    cfg.Simulation.SlippageBps,
		operators:  operators,
		symbols:    cfg.Engine.Symbols,
		controller: control.NewController(cfg.Control.Controller),
		rng:        rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
		logger:     logger,
	}
}

// observe derives the diagnostics of step.
func (c *controlLayer) observe(step *Step, in controlInputs) controlOutput {
	c.steps++
	g := step.Gate
	scores := make([]float64, len(c.operators))
	if in.Q != nil {
		for i, op := range c.operators {
			scores[i] = in.Q(op)
		}
	}
	lambda := g.LambdaGlobal

	slow := step.SlowBars
	if len(slow) == 0 {
		slow = step.MediumBars
	}
	vov, corr, eventZ := c.gateMeans(g)
	out := controlOutput{
		Regime: regime.Classify(regime.Features{
			RealizedVol: c.meanRangePct(slow),
			VolOfVol:    vov,
			CorrSpike:   corr,
		}),
	}

	drawdown := 0.0
	if in.PrevEquity > 0 {
		drawdown = math.Max(0, in.PrevEquity-in.Equity) / in.PrevEquity * 100
	}
	errRate := 0.0
	if n := in.Fills + in.Rejected; n > 0 {
		errRate = float64(in.Rejected) / float64(n)
	}
	out.Load = control.Load(control.LoadInputs{
		RealizedVol:      c.meanRangePct(step.MediumBars),
		DrawdownVelocity: drawdown,
		ErrorRate:        errRate,
		SlippageSpike:    c.spreadRatio(step),
	})
	burden := control.ExpectedBurden(control.BurdenInputs{
		ForecastVol:      vov,
		ExpectedSlippage: c.slipBps / c.gateCfg.Liquidity.MaxSpreadBps,
		EventRisk:        eventZ,
	})
	out.Mismatch = control.Mismatch(out.Load, burden)

	c.mismatch = appendBounded(c.mismatch, out.Mismatch, c.cfg.Type2.PersistentWindow)
	c.tail = appendBounded(c.tail, out.Mismatch, c.cfg.TailWindow)
	c.mi = appendBounded(c.mi, in.SignalMI, c.cfg.MILookback)
	mi := selector.SummarizeMI(c.mi, c.cfg.MILookback)
	out.MIFalling = mi.Falling

	out.Zone = control.SelectZone(lambda, out.Load, out.Mismatch)
	out.RiskMultiplier = risk.Type1RiskMultiplier(out.Zone, lambda, math.Abs(out.Mismatch))
	out.Controller = c.controller.Step(control.ControllerInput{
		Scores:     scores,
		SignalMI:   in.SignalMI,
		OperatorMI: mi.Mean,
		Mismatch:   out.Mismatch,
		Lambda:     lambda,
	})

	out.Type2 = control.ShouldTriggerType2(c.mismatch, c.mi, lambda, c.cfg.Type2)
	if out.Type2 {
		out.Type2Accepted = c.proposeType2(step, in, mi, out.Zone)
	}
	c.prevTDError, c.hasTDError = in.TDError, true

	hint, err := control.SelectOperator(control.PolicyContext{
		Regime:          out.Regime.Label,
		Zone:            out.Zone,
		ExplorePressure: out.Controller.ExplorePressure,
	}, c.operators, scores)
	if err == nil {
		out.PolicyHint = hint
	}
	return out
}

// proposeType2 draws a heavy-tailed temperature step for the controller and
// applies it when the proposal passes risk and shows an MI or prediction gain.
func (c *controlLayer) proposeType2(step *Step, in controlInputs, mi selector.MISummary, zone string) bool {
	c.triggers = appendBounded(c.triggers, float64(c.steps), c.cfg.TailWindow)
	proposal := control.ProposeHeavyTailStep(c.rng, c.cfg.Type2.ProposalScale, c.cfg.Type2.ProposalDoF)

	miGain := mi.Value - mi.Mean
	predGain := 0.0
	if c.hasTDError {
		predGain = c.prevTDError - in.TDError
	}
	accepted := control.AcceptType2Proposal(miGain, predGain, zone != control.ZoneReset && !in.KillSwitch)
	if accepted {
		c.controller.Nudge(proposal)
	}

	gaps := control.InterEventTimes(c.triggers)
	c.logger.Debug().
		Time("ts", step.Ts).
		Float64("proposal", proposal).
		Bool("accepted", accepted).
		Float64("tail_index", control.HillTailExponent(c.tail, c.cfg.Type2.TailK)).
		Float64("mean_gap_steps", features.Mean(gaps)).
		Msg("type-2 trigger")
	return accepted
}

// gateMeans returns the cross-symbol means of vol-of-vol, corr shock and
// event intensity z.
func (c *controlLayer) gateMeans(g gate.Result) (vov, corr, eventZ float64) {
	n := 0
	for _, symbol := range c.symbols {
		in, ok := g.Inputs[symbol]
		if !ok {
			continue
		}
		n++
		vov += in.VolOfVol
		corr += in.CorrShock
		eventZ += in.EventIntensityZ
	}
	if n == 0 {
		return 0, 0, 0
	}
	return vov / float64(n), corr / float64(n), eventZ / float64(n)
}

// meanRangePct is the mean (high - low) / close in percent over bars.
func (c *controlLayer) meanRangePct(bars map[string]domain.Bar) float64 {
	total, n := 0.0, 0
	for _, symbol := range c.symbols {
		b, ok := bars[symbol]
		if !ok || b.Close <= 0 {
			continue
		}
		total += (b.High - b.Low) / b.Close * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// spreadRatio is the mean spread of the latest fast bars, falling back to
// medium bars, relative to the gate's spread limit.
func (c *controlLayer) spreadRatio(step *Step) float64 {
	total, n := 0.0, 0
	for _, symbol := range c.symbols {
		b, ok := step.FastBars[symbol]
		if !ok {
			if b, ok = step.MediumBars[symbol]; !ok {
				continue
			}
		}
		total += gate.SpreadBps(b, c.gateCfg.Liquidity.UseBidAskIfAvailable)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n) / c.gateCfg.Liquidity.MaxSpreadBps
}

func appendBounded(buf []float64, v float64, n int) []float64 {
	buf = append(buf, v)
	if len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	return buf
}

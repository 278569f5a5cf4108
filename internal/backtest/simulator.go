package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"trident-trader/internal/control"
	"trident-trader/internal/domain"
	"trident-trader/internal/execution"
	"trident-trader/internal/gate"
	"trident-trader/internal/observability"
	"trident-trader/internal/portfolio"
	"trident-trader/internal/relational"
	"trident-trader/internal/risk"
	"trident-trader/internal/selector"
	"trident-trader/internal/successor"
)

// minDelta is the smallest position change that produces an order.
const minDelta = 1e-12

// SimulationConfig holds account, cost and risk parameters.
type SimulationConfig struct {
	InitialCash float64     `yaml:"initial_cash" default:"1000000" validate:"gt=0"`
	SlippageBps float64     `yaml:"slippage_bps" default:"0.6" validate:"gte=0"`
	FeeBps      float64     `yaml:"fee_bps" default:"0.2" validate:"gte=0"`
	Risk        risk.Limits `yaml:"risk"`
}

// DefaultSimulationConfig returns the default account parameters.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		InitialCash: 1_000_000,
		SlippageBps: domain.ScenarioConfigRealistic.SlippageBps,
		FeeBps:      domain.ScenarioConfigRealistic.FeeBps,
		Risk:        risk.DefaultLimits(),
	}
}

// Costs returns the fill cost parameters as a scenario.
func (c SimulationConfig) Costs() domain.CostScenario {
	return domain.CostScenario{ScenarioID: domain.ScenarioCustom, SlippageBps: c.SlippageBps, FeeBps: c.FeeBps}
}

// Config is the complete configuration of one simulated run.
type Config struct {
	Engine     EngineConfig
	Simulation SimulationConfig
	Selector   selector.Config
	Relational relational.Config
	Successor  successor.Config
	Control    control.Config
}

// DefaultConfig returns defaults for symbols with the given periods.
func DefaultConfig(symbols []string, periods Periods) Config {
	return Config{
		Engine:     EngineConfig{Symbols: symbols, Periods: periods, Gate: gate.DefaultConfig()},
		Simulation: DefaultSimulationConfig(),
		Selector:   selector.DefaultConfig(),
		Relational: relational.DefaultConfig(),
		Successor:  successor.DefaultConfig(),
		Control:    control.DefaultConfig(),
	}
}

// DecisionSink receives finished decision records.
type DecisionSink interface {
	Record(rec domain.DecisionRecord) error
}

// DecisionSinkFunc adapts a function to DecisionSink.
type DecisionSinkFunc func(rec domain.DecisionRecord) error

// Record calls f.
func (f DecisionSinkFunc) Record(rec domain.DecisionRecord) error {
	return f(rec)
}

// Simulator turns decision steps into operator selections, risk-checked
// fills and equity marks. It implements StepHandler.
type Simulator struct {
	symbols []string
	cfg     Config

	logger    zerolog.Logger
	metrics   *observability.Metrics
	runID     string
	foldIndex int
	sinks     []DecisionSink

	book      *portfolio.Book
	oms       *execution.OMS
	riskState risk.State
	selector  *selector.Selector
	graph     *relational.GraphMap
	successor *successor.Map
	control   *controlLayer

	decisions  []domain.DecisionRecord
	fills      []domain.Fill
	rejections map[string]int

	// previous step, for reward attribution
	hasPrev      bool
	prevEquity   float64
	lastOperator string
	lastFeatures []float64
}

// NewSimulator creates a simulator with fresh state.
func NewSimulator(cfg Config, opts ...Option) (*Simulator, error) {
	if len(cfg.Engine.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	sel, err := selector.New(cfg.Selector)
	if err != nil {
		return nil, fmt.Errorf("create selector: %w", err)
	}
	o := buildOptions(opts)
	return &Simulator{
		symbols:    cfg.Engine.Symbols,
		cfg:        cfg,
		logger:     o.logger,
		metrics:    o.metrics,
		runID:      o.runID,
		foldIndex:  o.foldIndex,
		sinks:      o.sinks,
		book:       portfolio.NewBook(cfg.Simulation.InitialCash),
		oms:        execution.NewOMS(cfg.Simulation.Costs()),
		selector:   sel,
		graph:      relational.NewGraphMap(cfg.Engine.Symbols, cfg.Relational),
		successor:  successor.New(cfg.Successor),
		control:    newControlLayer(cfg, o.logger),
		rejections: make(map[string]int),
	}, nil
}

// OnStep runs one decision step:
//  1. attribute the equity change since the last step to the last operator
//  2. update the relational graph and the successor map
//  3. select an operator and trade each symbol toward its unit target
//  4. mark to market, derive the control diagnostics and record the decision
func (s *Simulator) OnStep(_ context.Context, step *Step) error {
	prices := make(map[string]float64, len(s.symbols))
	for _, symbol := range s.symbols {
		prices[symbol] = step.MediumBars[symbol].Close
	}

	if s.hasPrev {
		current := s.book.Valuation(prices)
		reward := (current - s.prevEquity) / math.Max(math.Abs(s.prevEquity), 1)
		s.selector.Observe(s.lastOperator, reward, s.lastFeatures)
	}

	fv := featureVector(step.Gate, s.symbols)
	returns := make(map[string]float64, len(s.symbols))
	mismatch := 0.0
	for _, symbol := range s.symbols {
		r := step.Gate.Inputs[symbol].LastReturn
		returns[symbol] = r
		mismatch += math.Abs(r)
	}
	mismatch /= float64(len(s.symbols))

	rel := s.graph.Update(returns)
	armed := step.Gate.Armed
	sr := s.successor.Update(rel.MotifKey, armed)
	sel := s.selector.Select(armed, mismatch, fv, sr.Uncertainty)

	fills, rejected, err := s.rebalance(step, sel.Operator, returns)
	if err != nil {
		return err
	}

	equity := s.book.MarkToMarket(prices, step.Ts)
	prevEquity := s.cfg.Simulation.InitialCash
	if s.hasPrev {
		prevEquity = s.prevEquity
	}
	ctl := s.control.observe(step, controlInputs{
		Equity:     equity,
		PrevEquity: prevEquity,
		Fills:      fills,
		Rejected:   rejected,
		SignalMI:   sel.MI.Value,
		TDError:    sr.TDErrorNorm,
		Q:          s.selector.Q,
		KillSwitch: s.riskState.KillSwitch,
	})
	s.hasPrev = true
	s.prevEquity = equity
	s.lastOperator = sel.Operator
	s.lastFeatures = fv

	rec := domain.DecisionRecord{
		RunID:               s.runID,
		FoldIndex:           s.foldIndex,
		Ts:                  step.Ts,
		Armed:               armed,
		LambdaGlobal:        step.Gate.LambdaGlobal,
		GoodStreams:         step.Gate.GoodStreams,
		Operator:            sel.Operator,
		MIScore:             sel.MI.Value,
		MIStable:            sel.MI.Stable,
		Temperature:         s.selector.Temperature(),
		PolicyEntropy:       sel.PolicyEntropy,
		RelationalCluster:   rel.ClusterLabel,
		RelationalCoupling:  rel.CouplingIndex,
		RelationalStateKey:  rel.MotifKey,
		SRStateID:           sr.StateID,
		SRUncertainty:       sr.Uncertainty,
		SRTransitionEntropy: sr.TransitionEntropy,
		SRTDErrorNorm:       sr.TDErrorNorm,
		SRLearned:           sr.Learned,
		Regime:              ctl.Regime.Label,
		Zone:                ctl.Zone,
		Load:                ctl.Load,
		StructuralMismatch:  ctl.Mismatch,
		RiskMultiplier:      ctl.RiskMultiplier,
		Type2Trigger:        ctl.Type2,
		MIFalling:           ctl.MIFalling,
		ControlMode:         ctl.Controller.Mode,
		ExplorePressure:     ctl.Controller.ExplorePressure,
		PolicyHint:          ctl.PolicyHint,
		Equity:              equity,
		DailyPnL:            s.book.DailyPnL(step.Ts),
		Fills:               fills,
		Rejections:          rejected,
	}
	s.decisions = append(s.decisions, rec)
	s.metrics.RecordDecision(armed, sel.Operator, rec.LambdaGlobal, rec.Temperature, equity)
	s.metrics.RecordControl(rec.Regime, rec.Zone, rec.Type2Trigger, rec.StructuralMismatch)

	for _, sink := range s.sinks {
		if err := sink.Record(rec); err != nil {
			return fmt.Errorf("record decision %s: %w", step.Ts.Format("2006-01-02T15:04:05Z"), err)
		}
	}
	return nil
}

// rebalance trades every symbol toward the operator's target position.
// It returns the number of applied fills and risk rejections.
func (s *Simulator) rebalance(step *Step, operator string, returns map[string]float64) (int, int, error) {
	var filled, rejected int
	for _, symbol := range s.symbols {
		target := TargetQty(operator, returns[symbol])
		current := s.book.Qty(symbol)
		delta := target - current
		if math.Abs(delta) < minDelta {
			continue
		}

		side := domain.SideBuy
		if delta < 0 {
			side = domain.SideSell
		}
		bar := step.MediumBars[symbol]
		fill, err := s.oms.Execute(domain.OrderIntent{
			Symbol:     symbol,
			Side:       side,
			Qty:        math.Abs(delta),
			ReduceOnly: math.Abs(target) < math.Abs(current),
		}, bar)
		if err != nil {
			return filled, rejected, fmt.Errorf("execute %s: %w", symbol, err)
		}

		grossAfter := 0.0
		for _, other := range s.symbols {
			q := s.book.Qty(other)
			if other == symbol {
				q += delta
			}
			grossAfter += math.Abs(q * step.MediumBars[other].Close)
		}

		decision := risk.Check(s.cfg.Simulation.Risk, &s.riskState, risk.Order{
			Notional:   fill.Notional,
			GrossAfter: grossAfter,
			DailyPnL:   s.book.DailyPnL(step.Ts),
			ReduceOnly: math.Abs(target) < math.Abs(current),
		})
		if !decision.Allowed {
			rejected++
			s.rejections[decision.Reason]++
			s.metrics.RecordRejection(decision.Reason)
			s.logger.Debug().
				Time("ts", step.Ts).
				Str("symbol", symbol).
				Str("reason", decision.Reason).
				Float64("notional", fill.Notional).
				Msg("order rejected")
			continue
		}

		s.book.ApplyFill(fill, step.Ts)
		s.fills = append(s.fills, fill)
		s.metrics.RecordFill()
		filled++
	}
	return filled, rejected, nil
}

// TargetQty returns the unit target position for operator given the last return.
//
//   - flat: 0
//   - mean_reversion: -1 after an up move, else +1
//   - breakout: +1 after an up move, else -1
func TargetQty(operator string, lastReturn float64) float64 {
	switch operator {
	case selector.OperatorMeanReversion:
		if lastReturn > 0 {
			return -1
		}
		return 1
	case selector.OperatorBreakout:
		if lastReturn > 0 {
			return 1
		}
		return -1
	default:
		return 0
	}
}

// featureVector summarises a gate result for relevance estimation:
// [lambda_global, then the cross-symbol mean of volume_z, gap_rate,
// outlier_rate, vol_of_vol, corr_shock and event_intensity_z].
func featureVector(g gate.Result, symbols []string) []float64 {
	fv := make([]float64, 7)
	fv[0] = g.LambdaGlobal
	n := 0
	for _, symbol := range symbols {
		in, ok := g.Inputs[symbol]
		if !ok {
			continue
		}
		n++
		fv[1] += in.VolumeZ
		fv[2] += in.GapRate
		fv[3] += in.OutlierRate
		fv[4] += in.VolOfVol
		fv[5] += in.CorrShock
		fv[6] += in.EventIntensityZ
	}
	if n > 0 {
		for i := 1; i < len(fv); i++ {
			fv[i] /= float64(n)
		}
	}
	return fv
}

// Book returns the portfolio book.
func (s *Simulator) Book() *portfolio.Book {
	return s.book
}

// Decisions returns the decision records made so far.
func (s *Simulator) Decisions() []domain.DecisionRecord {
	return s.decisions
}

// Fills returns the applied fills in order.
func (s *Simulator) Fills() []domain.Fill {
	return s.fills
}

// Rejections returns risk rejection counts by reason.
func (s *Simulator) Rejections() map[string]int {
	return s.rejections
}

// KillSwitch reports whether the daily-loss kill switch has latched.
func (s *Simulator) KillSwitch() bool {
	return s.riskState.KillSwitch
}

// Ensure Simulator implements StepHandler
var _ StepHandler = (*Simulator)(nil)

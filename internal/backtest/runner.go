package backtest

import (
	"context"
	"iter"
	"maps"

	"trident-trader/internal/domain"
	"trident-trader/internal/metrics"
	"trident-trader/internal/replay"
)

// Result is the outcome of one simulated run.
type Result struct {
	Stats       domain.RunStats
	Decisions   []domain.DecisionRecord
	EquityCurve []domain.EquityPoint
	Fills       []domain.Fill
	Rejections  map[string]int
	KillSwitch  bool
}

// Runner executes simulated runs over replayed events.
type Runner struct {
	replayRunner *replay.Runner
	opts         []Option
}

// NewRunner creates a new backtest runner. opts apply to every run.
func NewRunner(replayRunner *replay.Runner, opts ...Option) *Runner {
	if replayRunner == nil {
		replayRunner = replay.NewRunner()
	}
	return &Runner{
		replayRunner: replayRunner,
		opts:         opts,
	}
}

// Run simulates cfg over events with fresh state.
// extra options are applied after the runner's own.
func (r *Runner) Run(ctx context.Context, cfg Config, events iter.Seq[replay.Event], extra ...Option) (*Result, error) {
	opts := append(append([]Option(nil), r.opts...), extra...)

	sim, err := NewSimulator(cfg, opts...)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(cfg.Engine, sim, opts...)
	if err != nil {
		return nil, err
	}

	if err := r.replayRunner.Run(ctx, events, engine); err != nil {
		return nil, err
	}

	curve := sim.Book().EquityCurve()
	return &Result{
		Stats:       metrics.Summarize(curve, sim.Fills()),
		Decisions:   sim.Decisions(),
		EquityCurve: curve,
		Fills:       sim.Fills(),
		Rejections:  maps.Clone(sim.Rejections()),
		KillSwitch:  sim.KillSwitch(),
	}, nil
}

// RunAll simulates cfg over an ordered event slice.
func (r *Runner) RunAll(ctx context.Context, cfg Config, events []replay.Event, extra ...Option) (*Result, error) {
	return r.Run(ctx, cfg, replay.SliceSeq(events), extra...)
}

// FoldResult renders the whole run as a single out-of-sample fold with
// index -1, spanning the first to the last decision. events is the number
// of replayed events.
func (r *Result) FoldResult(runID string, events int) domain.FoldResult {
	out := domain.FoldResult{
		RunID:         runID,
		Window:        domain.FoldWindow{FoldIndex: -1},
		EventsTest:    events,
		DecisionsTest: len(r.Decisions),
		Stats:         r.Stats,
	}
	if len(r.Decisions) == 0 {
		return out
	}
	first, last := r.Decisions[0].Ts, r.Decisions[len(r.Decisions)-1].Ts
	out.Window.TrainStart, out.Window.TrainEnd = first, first
	out.Window.TestStart, out.Window.TestEnd = first, last
	armed := 0
	for _, d := range r.Decisions {
		if d.Armed {
			armed++
		}
	}
	out.ArmedRateTest = float64(armed) / float64(len(r.Decisions))
	return out
}

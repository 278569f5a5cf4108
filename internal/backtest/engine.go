// Package backtest wires the per-symbol consolidation, rolling features and
// the lambda gate into a replay engine that emits decision steps.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trident-trader/internal/consolidator"
	"trident-trader/internal/domain"
	"trident-trader/internal/features"
	"trident-trader/internal/gate"
	"trident-trader/internal/observability"
	"trident-trader/internal/replay"
)

// ErrNoSymbols is returned when an engine is built without symbols.
var ErrNoSymbols = errors.New("at least one symbol is required")

// Periods are the consolidation timescales.
type Periods struct {
	Fast   time.Duration
	Medium time.Duration // decision cadence
	Slow   time.Duration
}

// EngineConfig configures the pipeline up to the gate.
type EngineConfig struct {
	Symbols []string
	Periods Periods
	Gate    gate.Config
}

// Step is the context handed to a StepHandler at each decision time.
// Maps are owned by the step. FastBars and SlowBars hold the latest closed
// bar per symbol and omit symbols that have not closed one yet.
type Step struct {
	Ts         time.Time
	Gate       gate.Result
	FastBars   map[string]domain.Bar
	MediumBars map[string]domain.Bar
	SlowBars   map[string]domain.Bar
}

// StepHandler receives decision steps in non-decreasing time order.
type StepHandler interface {
	OnStep(ctx context.Context, step *Step) error
}

// StepHandlerFunc adapts a function to StepHandler.
type StepHandlerFunc func(ctx context.Context, step *Step) error

// OnStep calls f.
func (f StepHandlerFunc) OnStep(ctx context.Context, step *Step) error {
	return f(ctx, step)
}

// stream holds one symbol's consolidators and rolling state.
type stream struct {
	fast    *consolidator.Consolidator
	medium  *consolidator.Consolidator
	slow    *consolidator.Consolidator
	rolling *features.RollingState

	lastFast   domain.Bar
	hasFast    bool
	lastMedium domain.Bar
	hasMedium  bool
	lastSlow   domain.Bar
	hasSlow    bool
}

// Engine implements replay.ReplayEngine.
// Bars update the fast, medium and slow consolidators in that order. A
// decision fires once per medium bucket end T, when every symbol's latest
// medium bar ends at T.
type Engine struct {
	cfg     EngineConfig
	handler StepHandler
	logger  zerolog.Logger
	metrics *observability.Metrics

	streams map[string]*stream
	news    map[time.Time]float64 // intensity keyed by medium bucket end

	lastDecision time.Time
	decided      bool
	steps        int
	ignored      int
}

// NewEngine creates an engine that calls handler at each decision step.
func NewEngine(cfg EngineConfig, handler StepHandler, opts ...Option) (*Engine, error) {
	if len(cfg.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	o := buildOptions(opts)

	streams := make(map[string]*stream, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		if _, dup := streams[symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %q", symbol)
		}
		fast, err := consolidator.New(symbol, cfg.Periods.Fast)
		if err != nil {
			return nil, fmt.Errorf("fast consolidator for %s: %w", symbol, err)
		}
		medium, err := consolidator.New(symbol, cfg.Periods.Medium)
		if err != nil {
			return nil, fmt.Errorf("medium consolidator for %s: %w", symbol, err)
		}
		slow, err := consolidator.New(symbol, cfg.Periods.Slow)
		if err != nil {
			return nil, fmt.Errorf("slow consolidator for %s: %w", symbol, err)
		}
		streams[symbol] = &stream{
			fast:    fast,
			medium:  medium,
			slow:    slow,
			rolling: features.NewRollingState(features.DefaultConfig(cfg.Periods.Medium)),
		}
	}

	return &Engine{
		cfg:     cfg,
		handler: handler,
		logger:  o.logger,
		metrics: o.metrics,
		streams: streams,
		news:    make(map[time.Time]float64),
	}, nil
}

// OnEvent processes a single event.
func (e *Engine) OnEvent(ctx context.Context, event *replay.Event) error {
	switch event.Type {
	case replay.EventTypeNews:
		e.metrics.RecordEvent(string(replay.EventTypeNews))
		e.onNews(event.News)
		return nil
	case replay.EventTypeBar:
		e.metrics.RecordEvent(string(replay.EventTypeBar))
		return e.onBar(ctx, event.Bar)
	default:
		return nil
	}
}

// Finish flushes each symbol's partial buckets, fast then medium then slow,
// in configured symbol order. A flush may complete a final decision.
func (e *Engine) Finish(ctx context.Context) error {
	for _, symbol := range e.cfg.Symbols {
		s := e.streams[symbol]
		if bar, ok := s.fast.Flush(); ok {
			s.lastFast, s.hasFast = bar, true
		}
		if bar, ok := s.medium.Flush(); ok {
			if err := e.onMedium(ctx, s, bar); err != nil {
				return err
			}
		}
		if bar, ok := s.slow.Flush(); ok {
			s.lastSlow, s.hasSlow = bar, true
		}
	}
	e.logger.Debug().
		Int("steps", e.steps).
		Int("ignored_bars", e.ignored).
		Msg("engine finished")
	return nil
}

// Steps returns the number of decision steps emitted.
func (e *Engine) Steps() int {
	return e.steps
}

func (e *Engine) onNews(n *domain.NewsEvent) {
	end := consolidator.FloorTime(n.Ts, e.cfg.Periods.Medium).Add(e.cfg.Periods.Medium)
	e.news[end] += n.Intensity
}

func (e *Engine) onBar(ctx context.Context, bar *domain.Bar) error {
	s, ok := e.streams[bar.Symbol]
	if !ok {
		e.ignored++
		return nil
	}
	if closed, ok := s.fast.Update(*bar); ok {
		s.lastFast, s.hasFast = closed, true
	}
	if closed, ok := s.medium.Update(*bar); ok {
		if err := e.onMedium(ctx, s, closed); err != nil {
			return err
		}
	}
	if closed, ok := s.slow.Update(*bar); ok {
		s.lastSlow, s.hasSlow = closed, true
	}
	return nil
}

func (e *Engine) onMedium(ctx context.Context, s *stream, bar domain.Bar) error {
	s.lastMedium, s.hasMedium = bar, true
	s.rolling.Update(bar.TsEnd, bar.Close, bar.Volume, e.news[bar.TsEnd])

	ts := bar.TsEnd
	if e.decided && !ts.After(e.lastDecision) {
		return nil
	}
	for _, other := range e.streams {
		if !other.hasMedium || !other.lastMedium.TsEnd.Equal(ts) {
			return nil
		}
	}
	return e.decide(ctx, ts)
}

func (e *Engine) decide(ctx context.Context, ts time.Time) error {
	e.lastDecision, e.decided = ts, true
	for key := range e.news {
		if key.Before(ts) {
			delete(e.news, key)
		}
	}

	step := &Step{
		Ts:         ts,
		FastBars:   make(map[string]domain.Bar, len(e.streams)),
		MediumBars: make(map[string]domain.Bar, len(e.streams)),
		SlowBars:   make(map[string]domain.Bar, len(e.streams)),
	}
	metrics := make(map[string]features.Metrics, len(e.streams))
	for symbol, s := range e.streams {
		if s.hasFast {
			step.FastBars[symbol] = s.lastFast
		}
		step.MediumBars[symbol] = s.lastMedium
		if s.hasSlow {
			step.SlowBars[symbol] = s.lastSlow
		}
		metrics[symbol] = s.rolling.Metrics()
	}
	step.Gate = gate.Evaluate(e.cfg.Gate, e.cfg.Symbols, step.MediumBars, metrics)
	e.steps++

	e.logger.Debug().
		Time("ts", ts).
		Bool("armed", step.Gate.Armed).
		Float64("lambda_global", step.Gate.LambdaGlobal).
		Int("good_streams", step.Gate.GoodStreams).
		Msg("decision step")

	if e.handler == nil {
		return nil
	}
	return e.handler.OnStep(ctx, step)
}

// Ensure Engine implements ReplayEngine and Finisher
var (
	_ replay.ReplayEngine = (*Engine)(nil)
	_ replay.Finisher     = (*Engine)(nil)
)

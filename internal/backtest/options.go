package backtest

import (
	"github.com/rs/zerolog"

	"trident-trader/internal/observability"
)

// Option configures an Engine, Simulator or Runner.
type Option func(*options)

type options struct {
	logger    zerolog.Logger
	metrics   *observability.Metrics
	runID     string
	foldIndex int
	sinks     []DecisionSink
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), foldIndex: -1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the Prometheus metrics. The default records nothing.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRunID stamps decision records with id.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithFoldIndex stamps decision records with a walk-forward fold index.
func WithFoldIndex(i int) Option {
	return func(o *options) { o.foldIndex = i }
}

// WithDecisionSink forwards every decision record to sink as it is made.
func WithDecisionSink(sink DecisionSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sink) }
}

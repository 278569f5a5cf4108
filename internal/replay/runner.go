package replay

import (
	"context"
	"iter"
)

// Runner replays an event stream through an engine.
type Runner struct {
	strict bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStrictOrdering makes Run fail with ErrInvalidOrdering when a timestamp decreases.
func WithStrictOrdering() RunnerOption {
	return func(r *Runner) { r.strict = true }
}

// NewRunner creates a new replay runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run feeds every event to the engine in order, then calls Finish if the engine
// implements Finisher. Cancellation is checked between events.
func (r *Runner) Run(ctx context.Context, events iter.Seq[Event], engine ReplayEngine) error {
	var last *Event
	for ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.strict && last != nil && ev.Timestamp.Before(last.Timestamp) {
			return ErrInvalidOrdering
		}
		if err := engine.OnEvent(ctx, &ev); err != nil {
			return err
		}
		last = &ev
	}

	if f, ok := engine.(Finisher); ok {
		return f.Finish(ctx)
	}
	return nil
}

// RunAll replays a materialized slice.
func (r *Runner) RunAll(ctx context.Context, events []Event, engine ReplayEngine) error {
	return r.Run(ctx, SliceSeq(events), engine)
}

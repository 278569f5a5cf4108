package backtest

import "context"

// StepRecorder is a handler that only collects steps.
// Useful for inspecting gate behaviour without simulating trades.
type StepRecorder struct {
	steps []*Step
}

// NewStepRecorder creates an empty recorder.
func NewStepRecorder() *StepRecorder {
	return &StepRecorder{
		steps: make([]*Step, 0),
	}
}

// OnStep stores step.
func (r *StepRecorder) OnStep(_ context.Context, step *Step) error {
	r.steps = append(r.steps, step)
	return nil
}

// Steps returns the collected steps in order.
func (r *StepRecorder) Steps() []*Step {
	return r.steps
}

// Ensure StepRecorder implements StepHandler
var _ StepHandler = (*StepRecorder)(nil)

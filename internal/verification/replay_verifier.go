package verification

import (
	"context"
	"errors"
	"fmt"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
)

var (
	// ErrNoStoredDecisions is returned when the run has no logged decisions.
	ErrNoStoredDecisions = errors.New("no stored decisions for run")

	// ErrNoDecisionStore is returned when the verifier has no decision store.
	ErrNoDecisionStore = errors.New("decision store not configured")
)

// ReplayFunc re-runs a simulation and returns its decision log.
type ReplayFunc func(ctx context.Context) ([]domain.DecisionRecord, error)

// ReplayVerifier compares a stored decision log with a fresh replay.
type ReplayVerifier struct {
	decisions storage.DecisionStore
	replay    ReplayFunc
}

// NewReplayVerifier creates a verifier over the decision store.
func NewReplayVerifier(decisions storage.DecisionStore, replay ReplayFunc) *ReplayVerifier {
	return &ReplayVerifier{decisions: decisions, replay: replay}
}

// VerifyRun loads runID's decisions, replays, and compares the two logs.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*Report, error) {
	if v.decisions == nil {
		return nil, ErrNoDecisionStore
	}
	stored, err := v.decisions.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStoredDecisions, runID)
	}

	replayed, err := v.replay(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	flat := make([]domain.DecisionRecord, len(stored))
	for i, d := range stored {
		flat[i] = *d
	}
	return VerifyDecisions(runID, flat, replayed), nil
}

package storage

import (
	"context"
	"time"

	"trident-trader/internal/domain"
)

// RunStore provides access to run metadata.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunMetadata) error

	// Finish records completion counters and finished_at. Returns ErrNotFound if run_id is unknown.
	Finish(ctx context.Context, r *domain.RunMetadata) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunMetadata, error)

	// GetByFingerprint retrieves all runs of one frozen config, ordered by started_at ASC.
	GetByFingerprint(ctx context.Context, fingerprint string) ([]*domain.RunMetadata, error)
}

// FoldResultStore provides access to per-fold results.
type FoldResultStore interface {
	// InsertBulk adds fold results atomically. Fails entire batch on any
	// duplicate (run_id, fold_index).
	InsertBulk(ctx context.Context, results []*domain.FoldResult) error

	// GetByRunID retrieves all folds of a run, ordered by fold_index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.FoldResult, error)
}

// DecisionStore provides access to the decision time series.
type DecisionStore interface {
	// InsertBulk adds decisions atomically. Fails entire batch on any
	// duplicate (run_id, fold_index, ts).
	InsertBulk(ctx context.Context, decisions []*domain.DecisionRecord) error

	// GetByRunID retrieves all decisions of a run, ordered by (fold_index, ts) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.DecisionRecord, error)

	// GetByTimeRange retrieves decisions of a run with ts in [start, end), ordered by (ts, fold_index) ASC.
	GetByTimeRange(ctx context.Context, runID string, start, end time.Time) ([]*domain.DecisionRecord, error)
}

// Stores bundles the optional persistence backends of a run. Nil members are skipped.
type Stores struct {
	Runs      RunStore
	Folds     FoldResultStore
	Decisions DecisionStore
}

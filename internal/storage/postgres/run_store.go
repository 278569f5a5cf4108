package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, kind, fingerprint, started_at, finished_at,
	folds_total, folds_completed, decisions_logged
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunMetadata) (err error) {
	defer func(began time.Time) { s.pool.observe("insert_run", began, err) }(time.Now())

	query := `INSERT INTO runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.Kind, r.Fingerprint, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.FoldsTotal, r.FoldsCompleted, r.DecisionsLogged,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records completion counters. Returns ErrNotFound if run_id is unknown.
func (s *RunStore) Finish(ctx context.Context, r *domain.RunMetadata) (err error) {
	defer func(began time.Time) { s.pool.observe("finish_run", began, err) }(time.Now())

	query := `
		UPDATE runs
		SET finished_at = $2, folds_total = $3, folds_completed = $4, decisions_logged = $5
		WHERE run_id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		r.RunID, r.FinishedAt.UTC(), r.FoldsTotal, r.FoldsCompleted, r.DecisionsLogged,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunMetadata, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// GetByFingerprint retrieves all runs of one config, ordered by started_at ASC.
func (s *RunStore) GetByFingerprint(ctx context.Context, fingerprint string) ([]*domain.RunMetadata, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE fingerprint = $1 ORDER BY started_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("get runs by fingerprint: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunMetadata
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.RunMetadata, error) {
	var r domain.RunMetadata
	err := row.Scan(
		&r.RunID, &r.Kind, &r.Fingerprint, &r.StartedAt, &r.FinishedAt,
		&r.FoldsTotal, &r.FoldsCompleted, &r.DecisionsLogged,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}

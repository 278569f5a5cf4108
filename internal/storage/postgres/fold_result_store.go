package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
)

// FoldResultStore implements storage.FoldResultStore using PostgreSQL.
type FoldResultStore struct {
	pool *Pool
}

// NewFoldResultStore creates a new FoldResultStore.
func NewFoldResultStore(pool *Pool) *FoldResultStore {
	return &FoldResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FoldResultStore = (*FoldResultStore)(nil)

const foldColumns = `
	run_id, fold_index, train_start, train_end, test_start, test_end,
	events_train, events_test, decisions_test, armed_rate_test,
	total_return, max_drawdown, turnover, avg_spread_bps, avg_slippage_bps, fills
`

// InsertBulk adds fold results atomically. Fails entire batch on any duplicate.
func (s *FoldResultStore) InsertBulk(ctx context.Context, results []*domain.FoldResult) (err error) {
	if len(results) == 0 {
		return nil
	}
	defer func(began time.Time) { s.pool.observe("insert_folds", began, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO fold_results (` + foldColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		)
	`

	batch := &pgx.Batch{}
	for _, r := range results {
		w := r.Window
		batch.Queue(query,
			r.RunID, w.FoldIndex, w.TrainStart.UTC(), w.TrainEnd.UTC(), w.TestStart.UTC(), w.TestEnd.UTC(),
			r.EventsTrain, r.EventsTest, r.DecisionsTest, r.ArmedRateTest,
			r.Stats.TotalReturn, r.Stats.MaxDrawdown, r.Stats.Turnover,
			r.Stats.AvgSpreadBps, r.Stats.AvgSlippageBps, r.Stats.Fills,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert fold results in bulk: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all folds of a run, ordered by fold_index ASC.
func (s *FoldResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.FoldResult, error) {
	query := `SELECT ` + foldColumns + ` FROM fold_results WHERE run_id = $1 ORDER BY fold_index ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get fold results by run id: %w", err)
	}
	defer rows.Close()

	var results []*domain.FoldResult
	for rows.Next() {
		var r domain.FoldResult
		w := &r.Window
		err := rows.Scan(
			&r.RunID, &w.FoldIndex, &w.TrainStart, &w.TrainEnd, &w.TestStart, &w.TestEnd,
			&r.EventsTrain, &r.EventsTest, &r.DecisionsTest, &r.ArmedRateTest,
			&r.Stats.TotalReturn, &r.Stats.MaxDrawdown, &r.Stats.Turnover,
			&r.Stats.AvgSpreadBps, &r.Stats.AvgSlippageBps, &r.Stats.Fills,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fold result row: %w", err)
		}
		w.TrainStart, w.TrainEnd = w.TrainStart.UTC(), w.TrainEnd.UTC()
		w.TestStart, w.TestEnd = w.TestStart.UTC(), w.TestEnd.UTC()
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fold result rows: %w", err)
	}
	return results, nil
}

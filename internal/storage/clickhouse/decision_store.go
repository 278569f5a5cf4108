package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"trident-trader/internal/domain"
	"trident-trader/internal/idhash"
	"trident-trader/internal/storage"
)

// DecisionStore implements storage.DecisionStore using ClickHouse.
type DecisionStore struct {
	conn *Conn
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(conn *Conn) *DecisionStore {
	return &DecisionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

const decisionColumns = `
	run_id, fold_index, ts,
	armed, lambda_global, good_streams,
	operator, mi_score, mi_stable, temperature, policy_entropy,
	relational_cluster, relational_coupling, relational_state_key,
	sr_state_id, sr_uncertainty, sr_transition_entropy, sr_td_error_norm, sr_learned,
	regime, zone, load, structural_mismatch, risk_multiplier,
	type2_trigger, mi_falling, control_mode, explore_pressure, policy_hint,
	equity, daily_pnl, fills, rejections
`

// InsertBulk adds decisions in one batch. Fails entire batch on any duplicate.
// ReplacingMergeTree does not reject duplicates, so keys are checked first.
func (s *DecisionStore) InsertBulk(ctx context.Context, decisions []*domain.DecisionRecord) (err error) {
	if len(decisions) == 0 {
		return nil
	}
	defer func(began time.Time) { s.conn.observe("insert_decisions", began, err) }(time.Now())

	ids := make([]string, len(decisions))
	seen := make(map[string]struct{}, len(decisions))
	runs := make(map[string]struct{})
	for i, d := range decisions {
		if d == nil || d.RunID == "" {
			return storage.ErrInvalidInput
		}
		id := idhash.ComputeDecisionID(d.RunID, d.FoldIndex, d.Ts)
		if _, exists := seen[id]; exists {
			return storage.ErrDuplicateKey
		}
		seen[id] = struct{}{}
		ids[i] = id
		runs[d.RunID] = struct{}{}
	}

	for runID := range runs {
		existing, err := s.existingIDs(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, id := range ids {
			if _, dup := existing[id]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO decisions (decision_id, `+decisionColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, d := range decisions {
		err = batch.Append(
			ids[i], d.RunID, int32(d.FoldIndex), d.Ts.UTC(),
			d.Armed, d.LambdaGlobal, int32(d.GoodStreams),
			d.Operator, d.MIScore, d.MIStable, d.Temperature, d.PolicyEntropy,
			d.RelationalCluster, d.RelationalCoupling, d.RelationalStateKey,
			int32(d.SRStateID), d.SRUncertainty, d.SRTransitionEntropy, d.SRTDErrorNorm, d.SRLearned,
			d.Regime, d.Zone, d.Load, d.StructuralMismatch, d.RiskMultiplier,
			d.Type2Trigger, d.MIFalling, d.ControlMode, d.ExplorePressure, d.PolicyHint,
			d.Equity, d.DailyPnL, int32(d.Fills), int32(d.Rejections),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all decisions of a run, ordered by (fold_index, ts) ASC.
func (s *DecisionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.DecisionRecord, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions FINAL
		WHERE run_id = ?
		ORDER BY fold_index ASC, ts ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query decisions by run: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// GetByTimeRange retrieves decisions of a run with ts in [start, end), ordered by (ts, fold_index) ASC.
func (s *DecisionStore) GetByTimeRange(ctx context.Context, runID string, start, end time.Time) ([]*domain.DecisionRecord, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions FINAL
		WHERE run_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, fold_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query decisions by time range: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func (s *DecisionStore) existingIDs(ctx context.Context, runID string) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `SELECT decision_id FROM decisions WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// scanDecisions scans multiple rows into a slice of DecisionRecord.
func scanDecisions(rows driver.Rows) ([]*domain.DecisionRecord, error) {
	var decisions []*domain.DecisionRecord

	for rows.Next() {
		var (
			d                                  domain.DecisionRecord
			fold, good, srState, fills, reject int32
		)
		err := rows.Scan(
			&d.RunID, &fold, &d.Ts,
			&d.Armed, &d.LambdaGlobal, &good,
			&d.Operator, &d.MIScore, &d.MIStable, &d.Temperature, &d.PolicyEntropy,
			&d.RelationalCluster, &d.RelationalCoupling, &d.RelationalStateKey,
			&srState, &d.SRUncertainty, &d.SRTransitionEntropy, &d.SRTDErrorNorm, &d.SRLearned,
			&d.Regime, &d.Zone, &d.Load, &d.StructuralMismatch, &d.RiskMultiplier,
			&d.Type2Trigger, &d.MIFalling, &d.ControlMode, &d.ExplorePressure, &d.PolicyHint,
			&d.Equity, &d.DailyPnL, &fills, &reject,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.FoldIndex = int(fold)
		d.GoodStreams = int(good)
		d.SRStateID = int(srState)
		d.Fills = int(fills)
		d.Rejections = int(reject)
		d.Ts = d.Ts.UTC()
		decisions = append(decisions, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return decisions, nil
}

package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
)

var t0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func testDecision(runID string, fold int, ts time.Time, operator string) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		RunID:               runID,
		FoldIndex:           fold,
		Ts:                  ts,
		Armed:               true,
		LambdaGlobal:        0.72,
		GoodStreams:         2,
		Operator:            operator,
		MIScore:             0.05,
		MIStable:            true,
		Temperature:         1.2,
		PolicyEntropy:       0.69,
		RelationalCluster:   "A|B",
		RelationalCoupling:  0.4,
		RelationalStateKey:  "A|B:weak",
		SRStateID:           3,
		SRUncertainty:       0.1,
		SRTransitionEntropy: 0.5,
		SRTDErrorNorm:       0.02,
		SRLearned:           true,
		Regime:              "volatile",
		Zone:                "light",
		Load:                0.31,
		StructuralMismatch:  -0.07,
		RiskMultiplier:      0.22,
		Type2Trigger:        true,
		MIFalling:           true,
		ControlMode:         "explore",
		ExplorePressure:     0.64,
		PolicyHint:          "breakout",
		Equity:              1_000_050,
		DailyPnL:            50,
		Fills:               2,
		Rejections:          1,
	}
}

func TestDecisionStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(conn)

	decisions := []*domain.DecisionRecord{
		testDecision("run-1", 1, t0.Add(time.Hour), "breakout"),
		testDecision("run-1", 0, t0.Add(2*time.Hour), "mean_reversion"),
		testDecision("run-1", 0, t0.Add(time.Hour), "flat"),
		testDecision("run-2", 0, t0.Add(time.Hour), "flat"),
	}
	require.NoError(t, store.InsertBulk(ctx, decisions))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "flat", got[0].Operator)
	assert.Equal(t, "mean_reversion", got[1].Operator)
	assert.Equal(t, "breakout", got[2].Operator)
	assert.Equal(t, *decisions[2], *got[0])

	ranged, err := store.GetByTimeRange(ctx, "run-1", t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, 0, ranged[0].FoldIndex)
	assert.Equal(t, 1, ranged[1].FoldIndex)
}

func TestDecisionStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(conn)

	d := testDecision("run-1", 0, t0, "flat")
	require.NoError(t, store.InsertBulk(ctx, []*domain.DecisionRecord{d}))

	err := store.InsertBulk(ctx, []*domain.DecisionRecord{d})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	other := testDecision("run-1", 0, t0.Add(time.Hour), "flat")
	err = store.InsertBulk(ctx, []*domain.DecisionRecord{other, other})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.DecisionRecord{{Ts: t0}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

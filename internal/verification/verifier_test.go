package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage/memory"
)

var t0 = time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC)

func decisionAt(fold, hour int) domain.DecisionRecord {
	return domain.DecisionRecord{
		RunID:              "run-1",
		FoldIndex:          fold,
		Ts:                 t0.Add(time.Duration(hour) * time.Hour),
		Armed:              true,
		LambdaGlobal:       0.8,
		GoodStreams:        2,
		Operator:           "breakout",
		MIScore:            0.25,
		MIStable:           true,
		Temperature:        0.6,
		PolicyEntropy:      1.1,
		RelationalCluster:  "EURUSD+GBPUSD",
		RelationalCoupling: 0.7,
		RelationalStateKey: "c1|strong",
		SRStateID:          3,
		SRUncertainty:      0.4,
		SRLearned:          true,
		Regime:             "calm",
		Zone:               "full",
		Load:               0.2,
		RiskMultiplier:     0.8,
		ControlMode:        "exploit",
		PolicyHint:         "mean_reversion",
		Equity:             100000,
		Fills:              1,
	}
}

func TestCompareDecisions_ExactMatch(t *testing.T) {
	a := decisionAt(0, 1)
	b := decisionAt(0, 1)
	b.RunID = "replay"

	if div := CompareDecisions(a, b); len(div) != 0 {
		t.Errorf("Expected 0 divergences, got %d: %v", len(div), div)
	}
}

func TestCompareDecisions_WithinTolerance(t *testing.T) {
	a := decisionAt(0, 1)
	b := decisionAt(0, 1)
	b.Equity += FloatTolerance / 2
	b.MIScore -= FloatTolerance / 2

	if div := CompareDecisions(a, b); len(div) != 0 {
		t.Errorf("Expected match within tolerance, got %v", div)
	}
}

func TestCompareDecisions_ControlDiagnostics(t *testing.T) {
	a := decisionAt(0, 1)
	b := decisionAt(0, 1)
	b.Regime = "shock"
	b.Type2Trigger = true
	b.RiskMultiplier += 10 * FloatTolerance
	b.PolicyHint = "breakout"

	div := CompareDecisions(a, b)
	want := []string{"Regime", "RiskMultiplier", "Type2Trigger", "PolicyHint"}
	if len(div) != len(want) {
		t.Fatalf("Expected %d divergences, got %d: %v", len(want), len(div), div)
	}
	for i, f := range want {
		if div[i].Field != f {
			t.Errorf("divergence %d: expected %s, got %s", i, f, div[i].Field)
		}
	}
}

func TestCompareDecisions_Divergences(t *testing.T) {
	a := decisionAt(0, 1)
	b := decisionAt(0, 1)
	b.Operator = "flat"
	b.Equity = 99990
	b.Fills = 0

	div := CompareDecisions(a, b)
	if len(div) != 3 {
		t.Fatalf("Expected 3 divergences, got %d: %v", len(div), div)
	}
	want := []string{"Operator", "Equity", "Fills"}
	for i, f := range want {
		if div[i].Field != f {
			t.Errorf("divergence %d: expected %s, got %s", i, f, div[i].Field)
		}
	}
	if div[0].Expected != "breakout" || div[0].Actual != "flat" {
		t.Errorf("unexpected operator divergence: %v", div[0])
	}
}

func TestVerifyDecisions(t *testing.T) {
	stored := []domain.DecisionRecord{decisionAt(0, 1), decisionAt(0, 2), decisionAt(1, 1)}
	changed := decisionAt(0, 2)
	changed.Armed = false
	replayed := []domain.DecisionRecord{decisionAt(1, 1), changed, decisionAt(0, 1), decisionAt(1, 5)}
	// stored (1,1) matched; (0,2) divergent; (1,5) extra; nothing missing
	report := VerifyDecisions("run-1", stored, replayed)

	if report.Total != 3 || report.Matched != 2 || report.Divergent != 1 || report.Extra != 1 || report.Missing != 0 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if report.OK() {
		t.Error("Expected report not OK")
	}
	if len(report.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(report.Results))
	}
	if report.Results[0].Key.FoldIndex != 0 || report.Results[0].Divergences[0].Field != "Armed" {
		t.Errorf("unexpected first result: %+v", report.Results[0])
	}
	if !report.Results[1].Extra {
		t.Errorf("Expected second result to be extra: %+v", report.Results[1])
	}
}

func TestVerifyDecisions_Missing(t *testing.T) {
	stored := []domain.DecisionRecord{decisionAt(-1, 1), decisionAt(-1, 2)}
	report := VerifyDecisions("run-1", stored, stored[:1])

	if report.Missing != 1 || report.Matched != 1 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if !report.Results[0].Missing {
		t.Error("Expected missing result")
	}
}

func TestReplayVerifier_VerifyRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDecisionStore()
	d1, d2 := decisionAt(-1, 1), decisionAt(-1, 2)
	if err := store.InsertBulk(ctx, []*domain.DecisionRecord{&d1, &d2}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v := NewReplayVerifier(store, func(context.Context) ([]domain.DecisionRecord, error) {
		a, b := decisionAt(-1, 1), decisionAt(-1, 2)
		a.RunID, b.RunID = "fresh", "fresh"
		return []domain.DecisionRecord{a, b}, nil
	})
	report, err := v.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if !report.OK() || report.Matched != 2 {
		t.Errorf("Expected clean replay, got %+v", report)
	}
}

func TestReplayVerifier_Errors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDecisionStore()
	replayErr := errors.New("boom")

	v := NewReplayVerifier(store, nil)
	if _, err := v.VerifyRun(ctx, "unknown"); !errors.Is(err, ErrNoStoredDecisions) {
		t.Errorf("Expected ErrNoStoredDecisions, got %v", err)
	}

	d := decisionAt(-1, 1)
	if err := store.InsertBulk(ctx, []*domain.DecisionRecord{&d}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	v = NewReplayVerifier(store, func(context.Context) ([]domain.DecisionRecord, error) { return nil, replayErr })
	if _, err := v.VerifyRun(ctx, "run-1"); !errors.Is(err, replayErr) {
		t.Errorf("Expected replay error, got %v", err)
	}

	if _, err := NewReplayVerifier(nil, nil).VerifyRun(ctx, "run-1"); !errors.Is(err, ErrNoDecisionStore) {
		t.Errorf("Expected ErrNoDecisionStore, got %v", err)
	}
}

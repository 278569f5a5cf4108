package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
	"trident-trader/internal/storage/memory"
)

func TestSaveRun(t *testing.T) {
	ctx := context.Background()
	stores := storage.Stores{
		Runs:      memory.NewRunStore(),
		Folds:     memory.NewFoldResultStore(),
		Decisions: memory.NewDecisionStore(),
	}
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	md := domain.RunMetadata{
		RunID:           "run-1",
		Kind:            domain.RunKindWalkForward,
		Fingerprint:     "fp",
		StartedAt:       start,
		FinishedAt:      start.Add(time.Minute),
		FoldsTotal:      2,
		FoldsCompleted:  1,
		DecisionsLogged: 2,
	}
	folds := []domain.FoldResult{{RunID: "run-1", Window: domain.FoldWindow{FoldIndex: 0}, DecisionsTest: 2}}
	decisions := []domain.DecisionRecord{
		{RunID: "run-1", FoldIndex: 0, Ts: start.Add(time.Hour)},
		{RunID: "run-1", FoldIndex: 0, Ts: start.Add(2 * time.Hour)},
	}

	if err := storage.SaveRun(ctx, stores, md, folds, decisions); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	run, err := stores.Runs.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if run.FoldsCompleted != 1 || !run.FinishedAt.Equal(md.FinishedAt) {
		t.Errorf("Run not finished: %+v", run)
	}
	if got, _ := stores.Folds.GetByRunID(ctx, "run-1"); len(got) != 1 {
		t.Errorf("Expected 1 fold, got %d", len(got))
	}
	if got, _ := stores.Decisions.GetByRunID(ctx, "run-1"); len(got) != 2 {
		t.Errorf("Expected 2 decisions, got %d", len(got))
	}

	if err := storage.SaveRun(ctx, stores, md, nil, nil); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey on second save, got %v", err)
	}
}

func TestSaveRun_NilStores(t *testing.T) {
	if err := storage.SaveRun(context.Background(), storage.Stores{}, domain.RunMetadata{RunID: "x"}, nil, nil); err != nil {
		t.Errorf("SaveRun with no stores should be a no-op, got %v", err)
	}
}

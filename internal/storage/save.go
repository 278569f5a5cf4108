package storage

import (
	"context"
	"fmt"

	"trident-trader/internal/domain"
)

// SaveRun writes a finished run to every configured store: metadata first,
// then fold results, then decisions, then the completion counters.
func SaveRun(ctx context.Context, s Stores, md domain.RunMetadata, folds []domain.FoldResult, decisions []domain.DecisionRecord) error {
	if s.Runs != nil {
		started := md
		started.FinishedAt = md.StartedAt
		if err := s.Runs.Insert(ctx, &started); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
	}
	if s.Folds != nil && len(folds) > 0 {
		rows := make([]*domain.FoldResult, len(folds))
		for i := range folds {
			rows[i] = &folds[i]
		}
		if err := s.Folds.InsertBulk(ctx, rows); err != nil {
			return fmt.Errorf("insert fold results: %w", err)
		}
	}
	if s.Decisions != nil && len(decisions) > 0 {
		rows := make([]*domain.DecisionRecord, len(decisions))
		for i := range decisions {
			rows[i] = &decisions[i]
		}
		if err := s.Decisions.InsertBulk(ctx, rows); err != nil {
			return fmt.Errorf("insert decisions: %w", err)
		}
	}
	if s.Runs != nil {
		if err := s.Runs.Finish(ctx, &md); err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
	}
	return nil
}

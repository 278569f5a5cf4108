package memory

import (
	"context"
	"sort"
	"sync"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
)

type foldKey struct {
	runID     string
	foldIndex int
}

// FoldResultStore is an in-memory implementation of storage.FoldResultStore.
type FoldResultStore struct {
	mu   sync.RWMutex
	data map[foldKey]*domain.FoldResult
}

// NewFoldResultStore creates a new in-memory fold result store.
func NewFoldResultStore() *FoldResultStore {
	return &FoldResultStore{
		data: make(map[foldKey]*domain.FoldResult),
	}
}

// InsertBulk adds fold results atomically. Fails entire batch on any duplicate.
func (s *FoldResultStore) InsertBulk(_ context.Context, results []*domain.FoldResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[foldKey]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := foldKey{r.RunID, r.Window.FoldIndex}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range results {
		copy := *r
		s.data[foldKey{r.RunID, r.Window.FoldIndex}] = &copy
	}
	return nil
}

// GetByRunID retrieves all folds of a run, ordered by fold_index ASC.
func (s *FoldResultStore) GetByRunID(_ context.Context, runID string) ([]*domain.FoldResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FoldResult
	for key, r := range s.data {
		if key.runID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Window.FoldIndex < result[j].Window.FoldIndex
	})
	return result, nil
}

var _ storage.FoldResultStore = (*FoldResultStore)(nil)

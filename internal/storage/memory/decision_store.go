package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/idhash"
	"trident-trader/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DecisionRecord // keyed by decision id
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		data: make(map[string]*domain.DecisionRecord),
	}
}

// InsertBulk adds decisions atomically. Fails entire batch on any duplicate.
func (s *DecisionStore) InsertBulk(_ context.Context, decisions []*domain.DecisionRecord) error {
	if len(decisions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(decisions))
	batchKeys := make(map[string]struct{}, len(decisions))
	for i, d := range decisions {
		if d == nil || d.RunID == "" {
			return storage.ErrInvalidInput
		}
		id := idhash.ComputeDecisionID(d.RunID, d.FoldIndex, d.Ts)
		if _, exists := s.data[id]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[id]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[id] = struct{}{}
		ids[i] = id
	}

	for i, d := range decisions {
		copy := *d
		s.data[ids[i]] = &copy
	}
	return nil
}

// GetByRunID retrieves all decisions of a run, ordered by (fold_index, ts) ASC.
func (s *DecisionStore) GetByRunID(_ context.Context, runID string) ([]*domain.DecisionRecord, error) {
	result := s.filter(func(d *domain.DecisionRecord) bool { return d.RunID == runID })
	sort.Slice(result, func(i, j int) bool {
		if result[i].FoldIndex != result[j].FoldIndex {
			return result[i].FoldIndex < result[j].FoldIndex
		}
		return result[i].Ts.Before(result[j].Ts)
	})
	return result, nil
}

// GetByTimeRange retrieves decisions of a run with ts in [start, end), ordered by (ts, fold_index) ASC.
func (s *DecisionStore) GetByTimeRange(_ context.Context, runID string, start, end time.Time) ([]*domain.DecisionRecord, error) {
	result := s.filter(func(d *domain.DecisionRecord) bool {
		return d.RunID == runID && !d.Ts.Before(start) && d.Ts.Before(end)
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Ts.Equal(result[j].Ts) {
			return result[i].Ts.Before(result[j].Ts)
		}
		return result[i].FoldIndex < result[j].FoldIndex
	})
	return result, nil
}

func (s *DecisionStore) filter(keep func(*domain.DecisionRecord) bool) []*domain.DecisionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DecisionRecord
	for _, d := range s.data {
		if keep(d) {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result
}

var _ storage.DecisionStore = (*DecisionStore)(nil)

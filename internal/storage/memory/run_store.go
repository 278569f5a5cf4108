package memory

import (
	"context"
	"sort"
	"sync"

	"trident-trader/internal/domain"
	"trident-trader/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunMetadata // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunMetadata),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunMetadata) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.RunID] = &copy
	return nil
}

// Finish updates completion counters and finished_at. Returns ErrNotFound if run_id is unknown.
func (s *RunStore) Finish(_ context.Context, r *domain.RunMetadata) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[r.RunID]
	if !exists {
		return storage.ErrNotFound
	}
	existing.FinishedAt = r.FinishedAt
	existing.FoldsTotal = r.FoldsTotal
	existing.FoldsCompleted = r.FoldsCompleted
	existing.DecisionsLogged = r.DecisionsLogged
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByFingerprint retrieves all runs of one config, ordered by started_at ASC.
func (s *RunStore) GetByFingerprint(_ context.Context, fingerprint string) ([]*domain.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunMetadata
	for _, r := range s.data {
		if r.Fingerprint == fingerprint {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.RunStore = (*RunStore)(nil)

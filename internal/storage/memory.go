package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/leeaandrob/weeklyreport/internal/models"
)

// MemoryStore is a process-local run ledger used when MongoDB is not
// configured. Runs are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]models.RunRecord
}

// NewMemoryStore creates an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]models.RunRecord)}
}

// SaveRun inserts or replaces a run by its run ID.
func (s *MemoryStore) SaveRun(_ context.Context, run *models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *run
	rec.Sections = append([]models.SectionRecord(nil), run.Sections...)
	s.runs[run.RunID] = rec
	return nil
}

// GetRun returns a run by its run ID.
func (s *MemoryStore) GetRun(_ context.Context, runID string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	runs := make([]models.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// HasDelivered reports whether a run for weekKey reached the sink completely.
func (s *MemoryStore) HasDelivered(_ context.Context, weekKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.WeekKey == weekKey && run.Delivered() {
			return true, nil
		}
	}
	return false, nil
}

package store

import (
	"context"
	"sync"
)

// MemoryStore keeps trials in process memory.
type MemoryStore struct {
	runs map[string]map[string]*Trial
	mu   sync.RWMutex
}

// NewMemoryStore creates a new memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string]*Trial)}
}

// SaveTrial stores a copy of t, replacing any trial with the same ID.
func (ms *MemoryStore) SaveTrial(ctx context.Context, t *Trial) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	run, ok := ms.runs[t.RunID]
	if !ok {
		run = make(map[string]*Trial)
		ms.runs[t.RunID] = run
	}
	cp := *t
	run[t.TrialID] = &cp
	return nil
}

// LoadTrials returns the run's trials in index order.
func (ms *MemoryStore) LoadTrials(ctx context.Context, runID string) ([]*Trial, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*Trial, 0, len(ms.runs[runID]))
	for _, t := range ms.runs[runID] {
		cp := *t
		out = append(out, &cp)
	}
	return sortedByIndex(out), nil
}

// Close implements Store.
func (ms *MemoryStore) Close() error {
	return nil
}

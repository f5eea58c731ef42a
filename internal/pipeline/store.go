package pipeline

import (
	"sort"
	"strings"
	"sync"
)

// Store is the run registry. Writes are single-key upserts by the run's own
// driver; reads return copies.
type Store interface {
	Create(s Snapshot) error
	Get(id string) (Snapshot, bool)
	Update(s Snapshot) error
	List() []Snapshot
}

// MemoryStore keeps snapshots for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Snapshot)}
}

func (s *MemoryStore) Create(snap Snapshot) error {
	id := strings.TrimSpace(snap.ID)
	if id == "" {
		return &ValidationError{Field: "id", Message: "is empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; ok {
		return &ValidationError{Field: "id", Message: "already exists: " + id}
	}
	s.runs[id] = snap
	return nil
}

func (s *MemoryStore) Get(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.runs[strings.TrimSpace(id)]
	return snap, ok
}

// Update replaces the snapshot of an existing run. A terminal snapshot is
// never replaced.
func (s *MemoryStore) Update(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.runs[snap.ID]
	if !ok {
		return ErrRunNotFound
	}
	if cur.Terminal() {
		return nil
	}
	s.runs[snap.ID] = snap
	return nil
}

// List returns all runs, oldest first.
func (s *MemoryStore) List() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.runs))
	for _, snap := range s.runs {
		out = append(out, snap)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

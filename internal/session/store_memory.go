package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory with TTL-based expiry, for
// single-instance deployments without redis.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	ttl          time.Duration
	cleanupEvery time.Duration
}

type memoryEntry struct {
	state    *State
	lastSeen time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:      make(map[string]*memoryEntry),
		ttl:          ttl,
		cleanupEvery: 2 * time.Minute,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && time.Since(ent.lastSeen) > s.ttl {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	ent.lastSeen = time.Now()
	return ent.state, nil
}

func (s *MemoryStore) Save(ctx context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[st.ID] = &memoryEntry{state: st, lastSeen: time.Now()}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Cleanup() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

// StartJanitor removes expired sessions periodically until the context is
// cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. With a ttl, expired entries
// are dropped on access and by a background sweep, so sessions that never
// come back do not pile up.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates an in-memory store. A zero ttl keeps entries forever
// and starts no sweep.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	if ttl > 0 {
		s.done = make(chan struct{})
		go s.sweepLoop(ttl)
	}
	return s
}

func (s *MemoryStore) expired(entry *Entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(entry.UpdatedAt) > s.ttl
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if s.expired(entry, s.now()) {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return nil, nil
	}

	cp := *entry
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, entry *Entry) error {
	cp := *entry
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.now()
	}

	s.mu.Lock()
	s.entries[sessionID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones not yet swept included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep drops every expired entry and returns how many went.
func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweep. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
	})
	return nil
}

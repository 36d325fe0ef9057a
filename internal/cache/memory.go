package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore implements SourceStore with an in-process map.
// This is suitable for single-instance deployments and testing
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]memoryItem
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryStore creates a MemoryStore. A background goroutine drops
// expired entries every interval until Close.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		items:    make(map[string]memoryItem),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if interval > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(interval)
	}
	return s
}

// Put stores a copy of entry under id
func (s *MemoryStore) Put(_ context.Context, id string, entry *Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id] = memoryItem{
		entry:     cloneEntry(entry),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Get returns a copy of the entry stored under id
func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || !s.now().Before(item.expiresAt) {
		return nil, ErrNotFound
	}
	entry := cloneEntry(&item.entry)
	return &entry, nil
}

// Delete removes id. Deleting a missing id is not an error
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close stops the cleanup goroutine. Safe to call multiple times
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, id)
		}
	}
}

func cloneEntry(e *Entry) Entry {
	out := *e
	out.Data = append([]byte(nil), e.Data...)
	if e.SourcePaths != nil {
		out.SourcePaths = append([]string(nil), e.SourcePaths...)
	}
	return out
}

var _ SourceStore = (*MemoryStore)(nil)

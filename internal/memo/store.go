package memo

import (
	"sync"

	"github.com/specialistvlad/cellgrid/internal/metrics"
)

// Store remembers the last content hash computed per cell key.
type Store struct {
	mu      sync.Mutex
	hashes  map[string]uint64
	metrics *metrics.Metrics
}

// NewStore creates an empty store. m may be nil.
func NewStore(m *metrics.Metrics) *Store {
	return &Store{hashes: map[string]uint64{}, metrics: m}
}

// ShouldRecompute reports whether h differs from the hash stored for key.
// When it does, h becomes the stored hash.
func (s *Store) ShouldRecompute(key string, h uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.hashes[key]; ok && old == h {
		s.metrics.MemoLookup(true)
		return false
	}
	s.hashes[key] = h
	s.metrics.MemoLookup(false)
	return true
}

// Peek returns the stored hash for key without touching it.
func (s *Store) Peek(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	return h, ok
}

// Forget drops the stored hash for each key, forcing the next comparison to
// report a change.
func (s *Store) Forget(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.hashes, k)
	}
}

// Retain drops every key for which keep returns false.
func (s *Store) Retain(keep func(key string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.hashes {
		if !keep(k) {
			delete(s.hashes, k)
		}
	}
}

// Reset drops every stored hash.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes = map[string]uint64{}
}

// Len returns the number of stored hashes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

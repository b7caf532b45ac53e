package cache

import (
	"sort"
	"sync"
)

// IDSet is a set of mission ids, used for completed and notified missions.
type IDSet struct {
	mu  sync.RWMutex
	ids map[int]struct{}
}

// NewIDSet creates an empty set.
func NewIDSet() *IDSet {
	return &IDSet{
		ids: make(map[int]struct{}),
	}
}

// Has reports whether id is in the set.
func (s *IDSet) Has(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add inserts id and reports whether it was newly added.
func (s *IDSet) Add(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove deletes id from the set.
func (s *IDSet) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Slice returns the ids in ascending order.
func (s *IDSet) Slice() []int {
	s.mu.RLock()
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Ints(out)
	return out
}

// Restore replaces the set contents with ids.
func (s *IDSet) Restore(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Len returns the number of ids.
func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Reset empties the set.
func (s *IDSet) Reset() {
	s.Restore(nil)
}

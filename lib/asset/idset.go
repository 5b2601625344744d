// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"slices"
	"sync"
)

// IDSet is a concurrency-safe set of identifiers. The resolver and the
// reconciler share one IDSet as the set of ids referenced in content
// but absent locally.
type IDSet struct {
	mu  sync.Mutex
	ids map[ID]struct{}
}

// NewIDSet creates a set holding the given ids.
func NewIDSet(ids ...ID) *IDSet {
	set := &IDSet{ids: make(map[ID]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

// Add inserts id and reports whether it was newly added.
func (s *IDSet) Add(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[id]; exists {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s *IDSet) Remove(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[id]; !exists {
		return false
	}
	delete(s.ids, id)
	return true
}

// Contains reports whether id is in the set.
func (s *IDSet) Contains(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.ids[id]
	return exists
}

// Len returns the number of ids in the set.
func (s *IDSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Snapshot returns the ids in sorted order. The slice is a copy.
func (s *IDSet) Snapshot() []ID {
	s.mu.Lock()
	ids := make([]ID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids
}

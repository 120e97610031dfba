package csync

import "sync"

// Set is a mutex-guarded set of comparable values.
//
// The watcher uses it as the in-flight guard: a filename is a member for
// exactly the duration of one pipeline run.
type Set[T comparable] struct {
	data map[T]struct{}
	mu   sync.Mutex
}

// NewSet creates an empty thread-safe set.
func NewSet[T comparable]() *Set[T] {
	return &Set[T]{data: make(map[T]struct{})}
}

// TryAdd inserts v and returns true, or returns false if v is already a
// member. The check and the insert are a single atomic step.
func (s *Set[T]) TryAdd(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[v]; exists {
		return false
	}
	s.data[v] = struct{}{}
	return true
}

// Remove deletes v from the set. Removing a non-member is a no-op.
func (s *Set[T]) Remove(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, v)
}

// Has reports whether v is a member.
func (s *Set[T]) Has(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.data[v]
	return exists
}

// Len returns the number of members.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

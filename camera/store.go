package camera

import "sync"

// Store holds the camera state of a data container. Get and Set copy values, so callers never
// share the stored state.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// Get returns a copy of the stored state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the stored state.
func (s *Store) Set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

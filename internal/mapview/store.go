package mapview

import "sync"

// Store holds the current State and notifies subscribers on every change.
// Updates carry the generation they were issued for; updates from an older
// generation are dropped.
type Store struct {
	subs       map[int]chan uint64
	state      State
	generation uint64
	nextSub    int
	mu         sync.RWMutex
}

// NewStore returns a store holding the initial state.
func NewStore() *Store {
	return &Store{
		state: InitialState(),
		subs:  make(map[int]chan uint64),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Apply runs the reducer if gen is still current, bumps the version and
// notifies subscribers. It reports whether the update was applied.
func (s *Store) Apply(gen uint64, reduce Reducer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}

	version := s.state.Version + 1
	s.state = reduce(s.state)
	s.state.Version = version
	s.notify(version)

	return true
}

// Reset discards the state, starts a new generation and returns it.
// Updates issued for earlier generations are ignored from now on.
func (s *Store) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.state.Version + 1
	s.generation++
	s.state = InitialState()
	s.state.Version = version
	s.notify(version)

	return s.generation
}

// Subscribe returns a channel receiving the latest version after each change
// and a function to unsubscribe. Slow subscribers only see the newest version.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// notify must be called with mu held.
func (s *Store) notify(version uint64) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- version:
		default:
		}
	}
}

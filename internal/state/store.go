// Package state provides an observable value container for controller view state.
package state

import "sync"

// Store holds the current value of T and notifies subscribers on change. Subscribers that fall
// behind only see the latest value; writers never block on them.
type Store[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]chan T
}

// New constructs a Store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.notifyLocked()
}

// Update applies fn to the current value atomically and returns the result.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.notifyLocked()
	return s.value
}

// Subscribe returns a channel that first receives the current value and then every later
// change. The returned func unsubscribes and closes the channel.
func (s *Store[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan T, 1)
	ch <- s.value
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store[T]) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- s.value:
			continue
		default:
		}
		// Drop the stale value so the newest one fits.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.value:
		default:
		}
	}
}

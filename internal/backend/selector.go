package backend

import (
	"context"
	"errors"
	"sync"
)

// Factory builds a backend.
type Factory func(ctx context.Context) (Backend, error)

// Selector lazily builds one backend and hands out that instance until it is
// reset or overridden.
type Selector struct {
	mu      sync.Mutex
	factory Factory
	current Backend
}

// NewSelector returns a selector that builds its backend with factory.
func NewSelector(factory Factory) *Selector {
	return &Selector{factory: factory}
}

// Backend returns the cached backend, building it on first use. A failed
// build is not cached.
func (s *Selector) Backend(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current, nil
	}
	if s.factory == nil {
		return nil, errors.New("no backend factory configured")
	}
	b, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}
	s.current = b
	return b, nil
}

// Override replaces the cached backend with b.
func (s *Selector) Override(b Backend) {
	s.mu.Lock()
	s.current = b
	s.mu.Unlock()
}

// Reset drops the cached backend; the next call to Backend builds a new one.
func (s *Selector) Reset() {
	s.Override(nil)
}

// Has reports whether a backend is cached.
func (s *Selector) Has() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

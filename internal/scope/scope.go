// Package scope ties in-flight work to the lifetime of the view that started it.
package scope

import (
	"context"
	"sync"
)

// Scope is cancelled when its owner goes away. Work bound to it is cancelled too and its
// results must be discarded.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scope derived from parent.
func New(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Bind returns a context cancelled when either ctx or the scope ends.
func (s *Scope) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return bound, func() {
		stop()
		cancel()
	}
}

// Closed reports whether Close was called or the parent ended.
func (s *Scope) Closed() bool {
	return s.ctx.Err() != nil
}

// Close cancels all bound work.
func (s *Scope) Close() {
	s.cancel()
}

// Guard admits at most one holder. TryAcquire drops rather than queues.
type Guard struct {
	once sync.Once
	sem  chan struct{}
}

func (g *Guard) init() {
	g.once.Do(func() { g.sem = make(chan struct{}, 1) })
}

// TryAcquire takes the guard if free.
func (g *Guard) TryAcquire() bool {
	g.init()
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Acquire waits for the guard or ctx.
func (g *Guard) Acquire(ctx context.Context) error {
	g.init()
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the guard.
func (g *Guard) Release() {
	g.init()
	select {
	case <-g.sem:
	default:
	}
}

// Busy reports whether the guard is held.
func (g *Guard) Busy() bool {
	g.init()
	return len(g.sem) > 0
}

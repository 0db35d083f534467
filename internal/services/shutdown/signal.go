// Package shutdown bridges asynchronous stop requests from the OS service
// manager to the synchronous worker loop.
package shutdown

import (
	"context"
	"sync"
)

type signal struct {
	once sync.Once
	done chan struct{}
}

// Trigger is the sending side. It is owned by the control callback.
type Trigger struct {
	s *signal
}

// Listener is the receiving side. It is owned by the worker loop.
type Listener struct {
	s *signal
}

// New returns the two ends of a fresh shutdown signal.
func New() (*Trigger, *Listener) {
	s := &signal{done: make(chan struct{})}
	return &Trigger{s: s}, &Listener{s: s}
}

// Fire requests shutdown. Only the first call has an effect and it never
// blocks.
func (t *Trigger) Fire() {
	t.s.once.Do(func() { close(t.s.done) })
}

// Requested polls the signal without blocking. Once it returns true it keeps
// returning true.
func (l *Listener) Requested() bool {
	select {
	case <-l.s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once shutdown is requested.
func (l *Listener) Done() <-chan struct{} {
	return l.s.done
}

// Context returns a context that is cancelled when shutdown is requested or
// parent is done. The returned cancel func must be called to release it.
func (l *Listener) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-l.s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ABOUTME: Manual-reset event shared between the renderer and its callers
// ABOUTME: Set wakes every waiter until Reset is called
package event

import (
	"sync"
	"time"
)

// Event is a manual-reset event. The zero value is not usable; call New.
type Event struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// New returns an event in the reset state
func New() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set signals the event. Waiters return until the next Reset.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
}

// Reset clears the event
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
}

// IsSet reports whether the event is signaled
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Done returns a channel that is closed while the event is set
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// Wait blocks until the event is set or timeout elapses and reports whether it was set.
// A non-positive timeout polls.
func (e *Event) Wait(timeout time.Duration) bool {
	ch := e.Done()
	if timeout <= 0 {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

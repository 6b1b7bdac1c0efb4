package sources

import (
	"sync"
	"sync/atomic"
)

// Mailbox is a single-slot cell written by an async producer and drained by
// Tick. A newer Put replaces an unread value.
type Mailbox[T any] struct {
	mu   sync.Mutex
	v    T
	full bool
}

func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.v, m.full = v, true
	m.mu.Unlock()
}

// Take returns the pending value and empties the slot.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if !m.full {
		return zero, false
	}
	v := m.v
	m.v, m.full = zero, false
	return v, true
}

func (m *Mailbox[T]) Clear() {
	m.Take()
}

// InFlight allows at most one outstanding async request.
type InFlight struct {
	busy atomic.Bool
}

// TryBegin claims the slot; false means a request is already running.
func (f *InFlight) TryBegin() bool {
	return f.busy.CompareAndSwap(false, true)
}

func (f *InFlight) End() {
	f.busy.Store(false)
}

func (f *InFlight) Busy() bool {
	return f.busy.Load()
}

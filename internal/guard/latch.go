// Package guard provides single-flight latches for slow operations that must
// never overlap with themselves.
package guard

import (
	"sync"
	"sync/atomic"
)

// Latch admits at most one holder at a time. Unlike a mutex, a second caller
// does not wait: TryAcquire reports the latch as busy and the caller backs off.
type Latch struct {
	name string
	busy atomic.Bool
}

func NewLatch(name string) *Latch {
	return &Latch{name: name}
}

func (l *Latch) Name() string { return l.name }

// InFlight reports whether the guarded operation is currently running.
func (l *Latch) InFlight() bool { return l.busy.Load() }

// TryAcquire sets the latch if it is idle. On success it returns a release
// func that clears the latch; extra calls to release are no-ops, so it is
// safe to defer it and also call it early.
func (l *Latch) TryAcquire() (release func(), ok bool) {
	if !l.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.busy.Store(false) })
	}, true
}

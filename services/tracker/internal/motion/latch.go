// Package motion is the Motion Gate: a depth-1 interrupt latch plus a
// validation pass that samples acceleration deltas before accepting a wake.
package motion

import "sync/atomic"

// Latch is the pending-motion flag. Signal is the only method an interrupt
// handler may call.
type Latch struct {
	pending atomic.Bool
	wake    chan struct{}
	raised  atomic.Uint32
}

func NewLatch() *Latch { return &Latch{wake: make(chan struct{}, 1)} }

// Signal marks motion pending. It never blocks.
func (l *Latch) Signal() {
	l.pending.Store(true)
	l.raised.Add(1)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PollRaw consumes the pending flag together with its buffered wake.
func (l *Latch) PollRaw() bool {
	if !l.pending.Swap(false) {
		return false
	}
	select {
	case <-l.wake:
	default:
	}
	return true
}

// Wake is readable after Signal; sleepers select on it.
func (l *Latch) Wake() <-chan struct{} { return l.wake }

// Reset clears the flag and any buffered wake.
func (l *Latch) Reset() {
	l.pending.Store(false)
	select {
	case <-l.wake:
	default:
	}
}

// Raised counts Signal calls since boot.
func (l *Latch) Raised() uint32 { return l.raised.Load() }

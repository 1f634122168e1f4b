package timex

import (
	"sync"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Clock is the firmware's view of time: milliseconds since boot plus a
// blocking delay. Uptime restarts from zero after every (deep-sleep) boot.
type Clock interface {
	UptimeMs() int64
	Sleep(d time.Duration)
}

// System is a Clock backed by the monotonic wall clock, anchored at creation.
type System struct{ start time.Time }

func NewSystem() *System { return &System{start: time.Now()} }

func (s *System) UptimeMs() int64       { return time.Since(s.start).Milliseconds() }
func (s *System) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually advanced Clock for tests and the bench simulator.
// Sleep advances the fake time instead of blocking.
type Fake struct {
	mu  sync.Mutex
	now int64
}

func NewFake(startMs int64) *Fake { return &Fake{now: startMs} }

func (f *Fake) UptimeMs() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(d time.Duration) { f.Advance(d) }

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now += d.Milliseconds()
	f.mu.Unlock()
}

func (f *Fake) Set(ms int64) {
	f.mu.Lock()
	f.now = ms
	f.mu.Unlock()
}

// Ms converts a duration to whole milliseconds.
func Ms(d time.Duration) int64 { return d.Milliseconds() }

package sim

import "sync/atomic"

// Presence is the rider sensor.
type Presence struct{ v atomic.Bool }

func (p *Presence) Set(present bool) { p.v.Store(present) }
func (p *Presence) Present() bool    { return p.v.Load() }

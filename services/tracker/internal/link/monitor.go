// Package link is the Connectivity Monitor: an edge detector over the
// link-connected signal that applies the per-cycle resets.
package link

import (
	"biketrack-go/services/tracker/internal/wake"
	"biketrack-go/x/logx"
)

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeConnect
	EdgeDisconnect
)

func (e Edge) String() string {
	switch e {
	case EdgeConnect:
		return "connect"
	case EdgeDisconnect:
		return "disconnect"
	}
	return "none"
}

// Hooks are the side effects of an edge. Nil hooks are skipped.
type Hooks struct {
	ArmMotion    func()
	DisarmMotion func()
	ResetModem   func()
}

type Monitor struct {
	prev  bool
	hooks Hooks
	log   logx.Logger
}

// NewMonitor seeds the previous link level. A cold boot seeds true so an
// absent link at first observation counts as a disconnect; a sleep wake
// seeds false because the cycle is already under way.
func NewMonitor(prevConnected bool, hooks Hooks, log logx.Logger) *Monitor {
	if log == nil {
		log = logx.Nop()
	}
	return &Monitor{prev: prevConnected, hooks: hooks, log: log}
}

// Update compares against the previous level and applies edge effects to st.
func (m *Monitor) Update(connected bool, st *wake.State) Edge {
	if connected == m.prev {
		return EdgeNone
	}
	m.prev = connected
	if connected {
		m.onConnect(st)
		return EdgeConnect
	}
	m.onDisconnect(st)
	return EdgeDisconnect
}

// Connected is the last observed level.
func (m *Monitor) Connected() bool { return m.prev }

func (m *Monitor) onConnect(st *wake.State) {
	st.ResetCycle()
	st.FirstDisconnectLogged = false
	st.WokeFromTimer = false
	call(m.hooks.DisarmMotion)
	m.log.Info("link up, alert cadence cancelled")
}

func (m *Monitor) onDisconnect(st *wake.State) {
	st.ResetCycle()
	call(m.hooks.ArmMotion)
	if !st.FirstDisconnectLogged {
		st.FirstDisconnectLogged = true
		call(m.hooks.ResetModem)
		m.log.Info("link down, first of cycle")
		return
	}
	m.log.Info("link down")
}

func call(f func()) {
	if f != nil {
		f()
	}
}

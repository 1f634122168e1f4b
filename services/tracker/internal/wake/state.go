// Package wake holds the decision state that outlives a deep sleep and the
// boot-reason gate that decides whether it can be trusted.
package wake

// State is the retained record. Fields are meaningful only after a
// sleep-originated boot; every other boot starts from the zero value.
type State struct {
	AlertSent             bool
	LastAlertMs           int64 // 0 = none recorded
	WokeFromTimer         bool
	FirstDisconnectLogged bool
	MotionWakeNeedsAlert  bool
	HasValidConfigAtBoot  bool
}

// ResetCycle clears the per-disconnect-cycle cadence flags.
func (s *State) ResetCycle() {
	s.AlertSent = false
	s.LastAlertMs = 0
	s.MotionWakeNeedsAlert = false
}

// TimerWakeDue reports the post-deep-sleep condition in which the next
// periodic alert is owed immediately.
func (s *State) TimerWakeDue() bool { return s.WokeFromTimer && s.LastAlertMs == 0 }

// BootReason is why the program started.
type BootReason uint8

const (
	BootPowerOn BootReason = iota
	BootExternalReset
	BootTimer
	BootMotion
	BootUnknown
)

func (r BootReason) String() string {
	switch r {
	case BootPowerOn:
		return "power-on"
	case BootExternalReset:
		return "external-reset"
	case BootTimer:
		return "deep-sleep-timer"
	case BootMotion:
		return "deep-sleep-motion"
	}
	return "unknown"
}

// SleepWake reports whether the retained region may hold a valid record.
func (r BootReason) SleepWake() bool { return r == BootTimer || r == BootMotion }

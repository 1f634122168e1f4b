package wake

// Restore applies the boot-reason gate. A sleep wake loads the retained
// record and marks it as a timer wake (a motion cause is not expected
// because motion pins are parked before deep sleep, but it is treated the
// same). Any other boot discards the region and starts from zero.
func Restore(st Store, reason BootReason) (State, error) {
	if !reason.SleepWake() {
		s := State{}
		return s, st.Save(s)
	}
	s, err := st.Load()
	if err != nil {
		s = State{}
	}
	s.WokeFromTimer = true
	s.LastAlertMs = 0
	return s, err
}

package tracker

import (
	"time"
)

// PowerState is the controller's state.
type PowerState uint8

const (
	StateAwake PowerState = iota
	StateLightSleepMotionWait
	StateDeepSleepTimerWait
	StateTimerWakeMonitor
)

func (s PowerState) String() string {
	switch s {
	case StateAwake:
		return "AWAKE"
	case StateLightSleepMotionWait:
		return "LIGHT_SLEEP_MOTION_WAIT"
	case StateDeepSleepTimerWait:
		return "DEEP_SLEEP_TIMER_WAIT"
	case StateTimerWakeMonitor:
		return "TIMER_WAKE_MONITOR"
	}
	return "UNKNOWN"
}

// Action is what the loop does after an iteration.
type Action uint8

const (
	ActContinue Action = iota
	ActLightSleep
	ActDeepSleep
)

func (a Action) String() string {
	switch a {
	case ActContinue:
		return "continue"
	case ActLightSleep:
		return "light-sleep"
	case ActDeepSleep:
		return "deep-sleep"
	}
	return "?"
}

// Decision is the result of one Step.
type Decision struct {
	Action Action
	Sleep  time.Duration // deep sleep only
}

var keepAwake = Decision{Action: ActContinue}

// decide runs after the scheduler and selects the next power transition.
func (d *Device) decide(now int64) Decision {
	if d.status.LinkConnected {
		d.state = StateAwake
		d.retrying = false
		return keepAwake
	}
	cfg := d.settings.Current()
	active := cfg.AlertsActive()

	busy := active && (d.ws.MotionWakeNeedsAlert || d.sched.Pending())
	if busy && !d.retrying {
		d.busySince = now
	}
	d.retrying = busy

	switch d.state {
	case StateTimerWakeMonitor:
		if !active {
			// nothing to send; fall back to motion-gated behaviour
			d.enterAwake(now)
			return keepAwake
		}
		if now < d.monitorUntilMs {
			return keepAwake
		}
		if d.ws.LastAlertMs != 0 && !busy {
			return d.deepSleep(d.remainingMs(now, cfg.IntervalMs()))
		}
		d.log.Warn("monitor window expired without alert")
		return d.deepSleep(d.params.RetryBackoffMs)

	case StateAwake:
		if busy {
			if now-d.busySince >= d.params.MonitorWindowMs {
				d.log.Warn("alert retries exhausted, backing off")
				return d.deepSleep(d.params.RetryBackoffMs)
			}
			return keepAwake
		}
		if active && d.ws.AlertSent {
			return d.deepSleep(d.remainingMs(now, cfg.IntervalMs()))
		}
		if now-d.quietSince >= d.params.QuietPeriodMs {
			return Decision{Action: ActLightSleep}
		}
	}
	return keepAwake
}

// remainingMs is the time until the next scheduled alert, at least 1 s.
func (d *Device) remainingMs(now, intervalMs int64) int64 {
	rem := intervalMs
	if d.ws.LastAlertMs != 0 {
		rem = intervalMs - (now - d.ws.LastAlertMs)
	}
	if rem < 1000 {
		rem = 1000
	}
	return rem
}

func (d *Device) deepSleep(ms int64) Decision {
	return Decision{Action: ActDeepSleep, Sleep: time.Duration(ms) * time.Millisecond}
}

func (d *Device) enterAwake(now int64) {
	d.state = StateAwake
	d.quietSince = now
	d.retrying = false
}

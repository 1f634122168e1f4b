// Package sim is simulated tracker hardware for the host bench: an
// accelerometer that can be shaken, a rider sensor, a SIM7070 that answers
// AT commands, an NMEA receiver and a BLE co-processor line.
package sim

import (
	"errors"
	"sync"
)

var ErrPoweredDown = errors.New("sim: accelerometer powered down")

// DefaultWakeG matches WAKE_UP_THS 0x08 at ±2 g.
const DefaultWakeG = 0.25

type accelMode uint8

const (
	modeNormal accelMode = iota
	modeLowPower
	modeOff
)

// Accel implements tracker.Accelerometer. Shake raises the delta for a
// number of reads and fires the wake interrupt when it is enabled. The
// interrupt is latched like the LSM6DSL's: once raised it does not fire
// again until ClearInterrupt.
type Accel struct {
	mu      sync.Mutex
	signal  func()
	mode    accelMode
	irq     bool
	latched bool
	level  float32
	burst  int
	wakeG  float32
	reads  int
	resets int
}

func NewAccel() *Accel { return &Accel{wakeG: DefaultWakeG} }

// Attach sets the interrupt line handler.
func (a *Accel) Attach(signal func()) {
	a.mu.Lock()
	a.signal = signal
	a.mu.Unlock()
}

// Shake holds a delta of g for the next n reads.
func (a *Accel) Shake(g float32, n int) {
	a.mu.Lock()
	a.level, a.burst = g, n
	fire := a.irq && !a.latched && a.mode != modeOff && g >= a.wakeG
	if fire {
		a.latched = true
	}
	sig := a.signal
	a.mu.Unlock()
	if fire && sig != nil {
		sig()
	}
}

func (a *Accel) ReadDelta() (float32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == modeOff {
		return 0, ErrPoweredDown
	}
	a.reads++
	if a.burst > 0 {
		a.burst--
		return a.level, nil
	}
	return 0.01, nil
}

func (a *Accel) ResetReference() error {
	a.mu.Lock()
	a.resets++
	a.mu.Unlock()
	return nil
}

func (a *Accel) SetNormalMode() error   { return a.setMode(modeNormal) }
func (a *Accel) SetLowPowerMode() error { return a.setMode(modeLowPower) }
func (a *Accel) PowerDown() error       { return a.setMode(modeOff) }

func (a *Accel) setMode(m accelMode) error {
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
	return nil
}

func (a *Accel) EnableWakeInterrupt() error {
	a.mu.Lock()
	a.irq, a.latched = true, false
	a.mu.Unlock()
	return nil
}

func (a *Accel) DisableInterrupts() error {
	a.mu.Lock()
	a.irq, a.latched = false, false
	a.mu.Unlock()
	return nil
}

func (a *Accel) ClearInterrupt() error {
	a.mu.Lock()
	a.latched = false
	a.mu.Unlock()
	return nil
}

// Armed reports whether the wake interrupt is enabled.
func (a *Accel) Armed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.irq
}

package motion

import (
	"time"

	"biketrack-go/x/logx"
	"biketrack-go/x/timex"
)

// Accelerometer is the sensor surface the gate needs.
type Accelerometer interface {
	// ReadDelta returns the magnitude (g) of the difference between the
	// current acceleration vector and the reference vector.
	ReadDelta() (float32, error)
	// ResetReference captures the current vector as the reference.
	ResetReference() error
	SetNormalMode() error
	SetLowPowerMode() error
	PowerDown() error
	// EnableWakeInterrupt routes wake-on-motion to both interrupt pins.
	EnableWakeInterrupt() error
	DisableInterrupts() error
	// ClearInterrupt releases a latched wake so the pins can rise again.
	ClearInterrupt() error
}

type Gate struct {
	acc   Accelerometer
	latch *Latch
	clk   timex.Clock
	delay time.Duration
	log   logx.Logger
	armed bool
}

func NewGate(acc Accelerometer, latch *Latch, clk timex.Clock, sampleDelay time.Duration, log logx.Logger) *Gate {
	if log == nil {
		log = logx.Nop()
	}
	return &Gate{acc: acc, latch: latch, clk: clk, delay: sampleDelay, log: log}
}

// PollRaw consumes the interrupt latch and releases the sensor's latched
// line. Returns false while disarmed.
func (g *Gate) PollRaw() bool {
	raw := g.latch.PollRaw()
	if raw {
		g.ack()
	}
	return raw && g.armed
}

func (g *Gate) ack() {
	if err := g.acc.ClearInterrupt(); err != nil {
		g.log.Warn("accel interrupt not cleared", "err", err)
	}
}

// Validate samples up to maxSamples deltas and accepts on the first one
// strictly above thresholdG. Read errors count as quiet samples.
func (g *Gate) Validate(maxSamples int, thresholdG float32) bool {
	for i := 0; i < maxSamples; i++ {
		if i > 0 && g.delay > 0 {
			g.clk.Sleep(g.delay)
		}
		d, err := g.acc.ReadDelta()
		if err != nil {
			g.log.Debug("accel read failed", "err", err)
			continue
		}
		if d > thresholdG {
			g.log.Info("motion accepted", "delta_g", d, "sample", i+1)
			return true
		}
	}
	g.log.Debug("motion rejected", "samples", maxSamples)
	return false
}

// Arm powers the sensor, primes the delta reference and enables wake
// interrupts. The latch is cleared so a stale edge is not replayed.
func (g *Gate) Arm() error {
	if err := g.acc.SetNormalMode(); err != nil {
		return err
	}
	if err := g.acc.ResetReference(); err != nil {
		g.log.Warn("accel reference not captured", "err", err)
	}
	if err := g.acc.EnableWakeInterrupt(); err != nil {
		return err
	}
	g.latch.Reset()
	g.armed = true
	return nil
}

// Disarm stops motion sensing and powers the sensor down.
func (g *Gate) Disarm() error {
	g.armed = false
	g.latch.Reset()
	if err := g.acc.DisableInterrupts(); err != nil {
		return err
	}
	return g.acc.PowerDown()
}

func (g *Gate) Armed() bool { return g.armed }

// EnterLowPower keeps wake detection alive at minimum draw for light sleep.
// The latched line is released first; the pins only wake on a rising edge.
func (g *Gate) EnterLowPower() error {
	g.ack()
	return g.acc.SetLowPowerMode()
}

// ExitLowPower restores full-rate sampling ahead of validation.
func (g *Gate) ExitLowPower() error { return g.acc.SetNormalMode() }

// Probe takes one reading without touching the latch (self-test).
func (g *Gate) Probe() (float32, error) { return g.acc.ReadDelta() }

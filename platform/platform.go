// Package platform describes the hardware a tracker runs on. Open (per
// build target) returns a Board; the firmware runner wires services to it.
package platform

import (
	"context"
	"io"
	"time"

	"biketrack-go/services/ble"
	"biketrack-go/services/tracker"
	"biketrack-go/storage/nvs"
	"biketrack-go/x/timex"
)

type Board struct {
	Name     string // embedded config key
	Clock    timex.Clock
	NV       nvs.Store
	Retained tracker.RetainedStore
	Latch    *tracker.Latch
	Accel    tracker.Accelerometer
	Presence tracker.PresenceSensor
	Modem    tracker.Modem
	Radio    ble.Port
	Sleeper  tracker.Sleeper
	Console  io.Reader
	Out      io.Writer

	// BootReason reports why this start happened.
	BootReason func() tracker.BootReason
	// DeepSleep powers down for d. On hardware it does not return.
	DeepSleep func(d time.Duration)
	// Start launches board-level background readers. May be nil.
	Start func(ctx context.Context)
}

// ChanSleeper idles on the wake channel; the scheduler halts the core
// while nothing is runnable.
type ChanSleeper struct {
	Park func() error
}

func (s ChanSleeper) LightSleep(ctx context.Context, wake <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wake:
		return nil
	}
}

func (s ChanSleeper) ParkPins() error {
	if s.Park == nil {
		return nil
	}
	return s.Park()
}

// Package tracker is the Power/Wake Controller: the single decision loop
// that fuses link, presence and motion, drives the alert cadence and picks
// the sleep depth.
package tracker

import (
	"context"
	"time"

	"biketrack-go/bus"
	"biketrack-go/services/tracker/internal/alert"
	"biketrack-go/services/tracker/internal/motion"
)

// Modem is the cellular collaborator.
type Modem interface {
	alert.Modem
	// Reset power-cycles the module (first disconnect of a cycle).
	Reset(ctx context.Context) error
	// PowerDown turns GNSS and the radio off ahead of deep sleep.
	PowerDown(ctx context.Context) error
}

// Accelerometer is the motion sensor surface.
type Accelerometer = motion.Accelerometer

// PresenceSensor is the infrared rider sensor.
type PresenceSensor interface {
	Present() bool
}

// Link is the wireless transport as the loop sees it.
type Link interface {
	Connected() bool
	StartAdvertising() error
}

// Sleeper halts the CPU. LightSleep returns once wake is readable (a motion
// pin fired) or ctx ends; RAM is retained. ParkPins drives the interrupt
// lines to a defined level ahead of deep sleep.
type Sleeper interface {
	LightSleep(ctx context.Context, wake <-chan struct{}) error
	ParkPins() error
}

// Bus topics shared with the transport and console services.
var (
	TopicStatus   = bus.T("tracker", "status")
	TopicHistory  = bus.T("tracker", "history")
	TopicLocation = bus.T("tracker", "location")
	TopicLink     = bus.T("link", "event")
	TopicConsole  = bus.T("console", "cmd")
)

// SleepRequest asks the platform for a timer-only deep sleep. Waking is a
// restart with boot reason wake.BootTimer.
type SleepRequest struct {
	Duration time.Duration
}

package tracker

import (
	"biketrack-go/services/tracker/internal/motion"
	"biketrack-go/services/tracker/internal/wake"
)

// Retained memory and wake sources, for platform code.
type (
	RetainedStore = wake.Store
	WakeState     = wake.State
	BootReason    = wake.BootReason
	Latch         = motion.Latch
)

const (
	BootPowerOn       = wake.BootPowerOn
	BootExternalReset = wake.BootExternalReset
	BootTimer         = wake.BootTimer
	BootMotion        = wake.BootMotion
	BootUnknown       = wake.BootUnknown
)

// RetainedRecordSize is the encoded WakeState size in bytes.
const RetainedRecordSize = wake.RecordSize

func NewLatch() *Latch { return motion.NewLatch() }

// NewMemRetained keeps the record in RAM; it survives an emulated restart
// as long as the caller keeps it.
func NewMemRetained() RetainedStore { return wake.NewMemStore() }

func EncodeRetained(s WakeState) [RetainedRecordSize]byte { return wake.Encode(s) }

func DecodeRetained(b [RetainedRecordSize]byte) (WakeState, error) { return wake.Decode(b) }

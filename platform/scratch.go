package platform

import (
	"encoding/binary"
	"sync"

	"biketrack-go/services/tracker"
)

// Scratch is a bank of 32-bit registers that survive a watchdog reset
// (RP2040 WATCHDOG.SCRATCH0..7).
type Scratch interface {
	Load(i int) uint32
	Store(i int, v uint32)
}

const scratchWords = tracker.RetainedRecordSize / 4

// ScratchStore keeps the retained WakeState in scratch words
// [base, base+4).
type ScratchStore struct {
	regs Scratch
	base int
	mu   sync.Mutex
}

func NewScratchStore(regs Scratch, base int) *ScratchStore {
	return &ScratchStore{regs: regs, base: base}
}

func (s *ScratchStore) Load() (tracker.WakeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b [tracker.RetainedRecordSize]byte
	for i := 0; i < scratchWords; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], s.regs.Load(s.base+i))
	}
	return tracker.DecodeRetained(b)
}

func (s *ScratchStore) Save(st tracker.WakeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := tracker.EncodeRetained(st)
	for i := 0; i < scratchWords; i++ {
		s.regs.Store(s.base+i, binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}

// Sleep markers kept in a scratch word across the reset that ends a deep
// sleep; they turn a watchdog reset into a timer or motion wake.
const (
	MarkerNone   uint32 = 0
	MarkerTimer  uint32 = 0x534C5054 // "SLPT"
	MarkerMotion uint32 = 0x534C504D // "SLPM"
)

// ClassifyBoot maps reset cause and sleep marker to a boot reason.
// A watchdog reset without a marker is an ordinary reset; an unrecognised
// marker after a watchdog reset is treated as a timer wake.
func ClassifyBoot(watchdogReset bool, marker uint32) tracker.BootReason {
	if !watchdogReset {
		return tracker.BootPowerOn
	}
	switch marker {
	case MarkerNone:
		return tracker.BootExternalReset
	case MarkerMotion:
		return tracker.BootMotion
	default:
		return tracker.BootTimer
	}
}

package wake

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"biketrack-go/errcode"
)

// Store is the narrow interface onto the retained-memory region.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// RecordSize is the encoded size; it fits four 32-bit scratch registers.
const RecordSize = 16

const (
	magic   uint16 = 0xB1CE
	version byte   = 1
)

const (
	flagAlertSent byte = 1 << iota
	flagWokeFromTimer
	flagFirstDisconnect
	flagMotionNeedsAlert
	flagValidConfig
)

// Encode packs s as magic(2) version(1) flags(1) lastAlertMs(8) crc32(4).
func Encode(s State) [RecordSize]byte {
	var b [RecordSize]byte
	binary.LittleEndian.PutUint16(b[0:2], magic)
	b[2] = version
	var f byte
	if s.AlertSent {
		f |= flagAlertSent
	}
	if s.WokeFromTimer {
		f |= flagWokeFromTimer
	}
	if s.FirstDisconnectLogged {
		f |= flagFirstDisconnect
	}
	if s.MotionWakeNeedsAlert {
		f |= flagMotionNeedsAlert
	}
	if s.HasValidConfigAtBoot {
		f |= flagValidConfig
	}
	b[3] = f
	binary.LittleEndian.PutUint64(b[4:12], uint64(s.LastAlertMs))
	binary.LittleEndian.PutUint32(b[12:16], crc32.ChecksumIEEE(b[:12]))
	return b
}

// Decode validates and unpacks a record.
func Decode(b [RecordSize]byte) (State, error) {
	if binary.LittleEndian.Uint16(b[0:2]) != magic || b[2] != version {
		return State{}, &errcode.E{C: errcode.CorruptState, Op: "wake.decode", Msg: "no record"}
	}
	if binary.LittleEndian.Uint32(b[12:16]) != crc32.ChecksumIEEE(b[:12]) {
		return State{}, &errcode.E{C: errcode.CorruptState, Op: "wake.decode", Msg: "checksum"}
	}
	f := b[3]
	return State{
		AlertSent:             f&flagAlertSent != 0,
		WokeFromTimer:         f&flagWokeFromTimer != 0,
		FirstDisconnectLogged: f&flagFirstDisconnect != 0,
		MotionWakeNeedsAlert:  f&flagMotionNeedsAlert != 0,
		HasValidConfigAtBoot:  f&flagValidConfig != 0,
		LastAlertMs:           int64(binary.LittleEndian.Uint64(b[4:12])),
	}, nil
}

// MemStore keeps the encoded record in RAM. The host simulator shares one
// across emulated restarts; tests use it directly.
type MemStore struct {
	mu  sync.Mutex
	rec [RecordSize]byte
}

func NewMemStore() *MemStore { return &MemStore{} }

func (m *MemStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Decode(m.rec)
}

func (m *MemStore) Save(s State) error {
	m.mu.Lock()
	m.rec = Encode(s)
	m.mu.Unlock()
	return nil
}

// Corrupt flips a byte of the stored record (tests).
func (m *MemStore) Corrupt() {
	m.mu.Lock()
	m.rec[5] ^= 0xFF
	m.mu.Unlock()
}

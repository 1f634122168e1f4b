package sim

import (
	"sync"
	"time"

	"biketrack-go/drivers/nmea"
)

// NMEAStream is a receiver UART (drivers.UART) that emits one RMC
// sentence per period from the modem's configured position.
type NMEAStream struct {
	src    *ATModem
	period time.Duration

	mu  sync.Mutex
	buf []byte
}

func NewNMEAStream(src *ATModem, period time.Duration) *NMEAStream {
	if period <= 0 {
		period = time.Second
	}
	return &NMEAStream{src: src, period: period}
}

func (s *NMEAStream) Buffered() int { return 1 << 10 }

func (s *NMEAStream) Write(p []byte) (int, error) { return len(p), nil }

// Read blocks for one period whenever a new sentence is needed.
func (s *NMEAStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(p) {
		if len(s.buf) == 0 {
			s.mu.Unlock()
			time.Sleep(s.period)
			line := s.sentence()
			s.mu.Lock()
			s.buf = append(s.buf, line...)
		}
		c := copy(p[n:], s.buf)
		s.buf = s.buf[c:]
		n += c
	}
	return n, nil
}

func (s *NMEAStream) sentence() string {
	lat, lon, ok := s.src.Position()
	if !ok {
		// Void status: receiver running, no fix.
		return "$GPRMC,,V,,,,,,,,,,N*53\r\n"
	}
	return nmea.FormatRMC(lat, lon, time.Now()) + "\r\n"
}

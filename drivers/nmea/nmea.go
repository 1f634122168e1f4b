// Package nmea is a GNSS fix source for receivers that stream NMEA 0183,
// on a UART or over u-blox DDC (I2C). Sentences are read and parsed with
// tinygo.org/x/drivers/gps by one background reader; AcquireFix waits for
// a fix newer than the call.
package nmea

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"biketrack-go/errcode"
	"biketrack-go/types"
	"biketrack-go/x/logx"
	"biketrack-go/x/timex"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/gps"
)

type Source struct {
	dev    gps.Device
	parser gps.Parser
	clk    timex.Clock
	log    logx.Logger

	mu      sync.Mutex
	last    types.Fix
	seq     uint64
	updated chan struct{} // closed and replaced on every new fix
	started bool
}

// NewUART reads from an already configured UART.
func NewUART(uart drivers.UART, clk timex.Clock, log logx.Logger) *Source {
	return newSource(gps.NewUART(uart), clk, log)
}

// NewI2C reads a u-blox receiver over DDC at the default address.
func NewI2C(bus drivers.I2C, clk timex.Clock, log logx.Logger) *Source {
	return newSource(gps.NewI2C(bus), clk, log)
}

func newSource(dev gps.Device, clk timex.Clock, log logx.Logger) *Source {
	if log == nil {
		log = logx.Nop()
	}
	return &Source{dev: dev, parser: gps.NewParser(), clk: clk, log: log, updated: make(chan struct{})}
}

// Start launches the reader. The gps driver blocks inside NextSentence,
// so the goroutine notices ctx only between sentences.
func (s *Source) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		for ctx.Err() == nil {
			sentence, err := s.dev.NextSentence()
			if err != nil {
				continue
			}
			s.Feed(sentence)
		}
	}()
}

// Feed parses one sentence and records it when it carries a valid fix.
func (s *Source) Feed(sentence string) bool {
	fix, err := s.parser.Parse(sentence)
	if err != nil || !fix.Valid || (fix.Latitude == 0 && fix.Longitude == 0) {
		return false
	}
	f := types.Fix{
		Latitude:    formatDeg(fix.Latitude),
		Longitude:   formatDeg(fix.Longitude),
		Valid:       true,
		TimestampMs: s.clk.UptimeMs(),
	}
	s.mu.Lock()
	s.last = f
	s.seq++
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
	return true
}

// Latest returns the most recent valid fix, if any.
func (s *Source) Latest() (types.Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last.Valid
}

// AcquireFix waits up to timeout for a fix parsed after the call.
func (s *Source) AcquireFix(ctx context.Context, timeout time.Duration) (types.Fix, error) {
	s.mu.Lock()
	start := s.seq
	s.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		s.mu.Lock()
		if s.seq > start {
			f := s.last
			s.mu.Unlock()
			return f, nil
		}
		ch := s.updated
		s.mu.Unlock()

		select {
		case <-ch:
		case <-t.C:
			return types.Fix{}, errcode.Wrap(errcode.NoFix, "nmea.fix", nil)
		case <-ctx.Done():
			return types.Fix{}, ctx.Err()
		}
	}
}

func formatDeg(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 6, 32)
}

// FormatRMC builds a checksummed $GPRMC sentence for a valid fix. The
// bench simulator uses it to emulate a receiver.
func FormatRMC(lat, lon float64, at time.Time) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns, lat = "S", -lat
	}
	if lon < 0 {
		ew, lon = "W", -lon
	}
	at = at.UTC()
	body := "GPRMC," +
		pad(at.Hour(), 2) + pad(at.Minute(), 2) + pad(at.Second(), 2) + ".00,A," +
		ddmm(lat, 2) + "," + ns + "," +
		ddmm(lon, 3) + "," + ew + "," +
		"0.0,0.0," +
		pad(at.Day(), 2) + pad(int(at.Month()), 2) + pad(at.Year()%100, 2) + ",,,A"
	return "$" + body + "*" + checksum(body)
}

func ddmm(deg float64, width int) string {
	d := math.Floor(deg)
	m := (deg - d) * 60
	ms := strconv.FormatFloat(m, 'f', 4, 64)
	if m < 10 {
		ms = "0" + ms
	}
	return pad(int(d), width) + ms
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

const hexDigits = "0123456789ABCDEF"

func checksum(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return string([]byte{hexDigits[cs>>4], hexDigits[cs&0x0F]})
}

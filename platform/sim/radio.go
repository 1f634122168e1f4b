package sim

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Radio stands in for the BLE co-processor: Inject queues a line as if
// the co-processor sent it, and everything the firmware writes is echoed
// to Out with a "[ble]" prefix.
type Radio struct {
	mu    sync.Mutex
	rx    []byte
	ready chan struct{}
	Out   io.Writer

	lastAdvert bool
	notes      int
	connected  bool
	mtu        int
}

func NewRadio(out io.Writer) *Radio {
	return &Radio{ready: make(chan struct{}, 1), Out: out}
}

// Inject queues one co-processor line ("C 185", "D", "W config {...}").
func (r *Radio) Inject(line string) {
	line = strings.TrimSpace(line)
	r.mu.Lock()
	switch {
	case line == "D":
		r.connected = false
	case strings.HasPrefix(line, "C"):
		r.connected = true
		r.mtu, _ = strconv.Atoi(strings.TrimSpace(line[1:]))
	}
	r.queueLocked(line)
	r.mu.Unlock()
}

// queueLocked appends a line for the firmware; caller holds mu.
func (r *Radio) queueLocked(line string) {
	r.rx = append(r.rx, line+"\n"...)
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

func (r *Radio) Write(p []byte) (int, error) {
	r.mu.Lock()
	s := string(p)
	if strings.HasPrefix(s, "A") {
		r.lastAdvert = true
		// A restarted host asks to advertise while the phone is still
		// attached; the co-processor reports the live connection.
		if r.connected {
			r.queueLocked("C " + strconv.Itoa(r.mtu))
		}
	}
	if strings.HasPrefix(s, "N ") {
		r.notes++
	}
	out := r.Out
	r.mu.Unlock()
	if out != nil {
		_, _ = io.WriteString(out, "[ble] "+s)
	}
	return len(p), nil
}

func (r *Radio) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		r.mu.Lock()
		if len(r.rx) > 0 {
			n := copy(p, r.rx)
			r.rx = r.rx[n:]
			r.mu.Unlock()
			return n, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-r.ready:
		}
	}
}

// Connected reports the central's state as the co-processor sees it.
func (r *Radio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Notifications counts notify lines written so far.
func (r *Radio) Notifications() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes
}

// Advertised reports whether an advertise line was written.
func (r *Radio) Advertised() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAdvert
}

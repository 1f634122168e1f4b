package sim

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SMS is one message accepted by the emulated network.
type SMS struct {
	Number string
	Text   string
}

// ATModem answers the subset of SIM7070G AT commands the driver uses.
// It implements the driver's Port.
type ATModem struct {
	mu     sync.Mutex
	rx     []byte
	ready  chan struct{}
	line   []byte
	prompt bool
	number string
	text   []byte
	gnss   bool
	ref    int

	lat, lon float64
	fixOK    bool
	network  bool
	failSMS  bool
	sent     []SMS

	// OnSMS observes accepted messages.
	OnSMS func(SMS)
}

func NewATModem(lat, lon float64) *ATModem {
	return &ATModem{
		ready:   make(chan struct{}, 1),
		lat:     lat,
		lon:     lon,
		fixOK:   true,
		network: true,
	}
}

func (m *ATModem) SetFix(lat, lon float64) {
	m.mu.Lock()
	m.lat, m.lon, m.fixOK = lat, lon, true
	m.mu.Unlock()
}

func (m *ATModem) SetFixAvailable(ok bool) { m.mu.Lock(); m.fixOK = ok; m.mu.Unlock() }
func (m *ATModem) SetNetwork(ok bool)      { m.mu.Lock(); m.network = ok; m.mu.Unlock() }
func (m *ATModem) SetFailSMS(fail bool)    { m.mu.Lock(); m.failSMS = fail; m.mu.Unlock() }

// Position returns the configured coordinates.
func (m *ATModem) Position() (lat, lon float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lat, m.lon, m.fixOK
}

// Sent returns a copy of the accepted messages.
func (m *ATModem) Sent() []SMS {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SMS(nil), m.sent...)
}

func (m *ATModem) Write(p []byte) (int, error) {
	var accepted []SMS
	m.mu.Lock()
	for _, c := range p {
		if m.prompt {
			switch c {
			case 0x1A:
				if s, ok := m.finishSend(); ok {
					accepted = append(accepted, s)
				}
			case 0x1B:
				m.prompt = false
				m.text = m.text[:0]
			default:
				m.text = append(m.text, c)
			}
			continue
		}
		switch c {
		case '\r':
			m.handle(strings.TrimSpace(string(m.line)))
			m.line = m.line[:0]
		case '\n':
		case 0x1B:
			m.line = m.line[:0]
		default:
			m.line = append(m.line, c)
		}
	}
	cb := m.OnSMS
	m.mu.Unlock()
	if cb != nil {
		for _, s := range accepted {
			cb(s)
		}
	}
	return len(p), nil
}

func (m *ATModem) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		m.mu.Lock()
		if len(m.rx) > 0 {
			n := copy(p, m.rx)
			m.rx = m.rx[n:]
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-m.ready:
		}
	}
}

// reply queues output; caller holds mu.
func (m *ATModem) reply(s string) {
	m.rx = append(m.rx, s...)
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *ATModem) ok() { m.reply("\r\nOK\r\n") }

func (m *ATModem) handle(cmd string) {
	switch {
	case cmd == "":
	case cmd == "AT", cmd == "AT+CMGF=1":
		m.ok()
	case cmd == "AT+CFUN=1,1", cmd == "AT+CFUN=0":
		m.gnss = false
		m.ok()
	case cmd == "AT+CGNSPWR=1":
		m.gnss = true
		m.ok()
	case cmd == "AT+CGNSPWR=0":
		m.gnss = false
		m.ok()
	case cmd == "AT+CGNSINF":
		m.reply("\r\n+CGNSINF: " + m.cgnsinf() + "\r\n")
		m.ok()
	case cmd == "AT+CREG?":
		stat := "2"
		if m.network {
			stat = "1"
		}
		m.reply("\r\n+CREG: 0," + stat + "\r\n")
		m.ok()
	case strings.HasPrefix(cmd, `AT+CMGS="`):
		if !m.network {
			m.reply("\r\nERROR\r\n")
			return
		}
		m.number = strings.TrimSuffix(strings.TrimPrefix(cmd, `AT+CMGS="`), `"`)
		m.prompt = true
		m.text = m.text[:0]
		m.reply("\r\n> ")
	default:
		m.reply("\r\nERROR\r\n")
	}
}

func (m *ATModem) cgnsinf() string {
	if !m.gnss {
		return "0,,,,,,,,,,,,,,,,,,,,"
	}
	if !m.fixOK {
		return "1,0,,,,,,,,,,,,,,,,,,,"
	}
	utc := time.Now().UTC().Format("20060102150405") + ".000"
	return "1,1," + utc + "," +
		strconv.FormatFloat(m.lat, 'f', 6, 64) + "," +
		strconv.FormatFloat(m.lon, 'f', 6, 64) + ",35.0,0.00,0.0,1,,1.1,1.4,0.9,,8,6,,,42,,"
}

// finishSend closes the prompt; caller holds mu.
func (m *ATModem) finishSend() (SMS, bool) {
	m.prompt = false
	s := SMS{Number: m.number, Text: string(m.text)}
	m.text = m.text[:0]
	if m.failSMS {
		m.reply("\r\n+CMS ERROR: 500\r\n")
		return SMS{}, false
	}
	m.ref++
	m.sent = append(m.sent, s)
	m.reply("\r\n+CMGS: " + strconv.Itoa(m.ref) + "\r\n\r\nOK\r\n")
	return s, true
}

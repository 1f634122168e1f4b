package sim

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Hardware is one simulated board.
type Hardware struct {
	Accel    *Accel
	Presence *Presence
	Modem    *ATModem
	Radio    *Radio
	NMEA     *NMEAStream // nil unless gnss.external
	Profile  Profile

	wake chan struct{}
}

func New(p Profile, out io.Writer) *Hardware {
	h := &Hardware{
		Accel:    NewAccel(),
		Presence: &Presence{},
		Modem:    NewATModem(p.GNSS.Lat, p.GNSS.Lon),
		Radio:    NewRadio(out),
		Profile:  p,
		wake:     make(chan struct{}, 1),
	}
	if p.GNSS.External {
		h.NMEA = NewNMEAStream(h.Modem, time.Second)
	}
	if p.Link.Connected {
		h.Radio.Inject("C " + strconv.Itoa(p.Link.MTU))
	}
	h.Modem.SetFixAvailable(p.GNSS.Available)
	h.Modem.SetNetwork(p.Modem.Network)
	h.Modem.SetFailSMS(p.Modem.FailSMS)
	h.Presence.Set(p.Rider.Present)
	return h
}

const benchHelp = `sim commands:
  sim shake [g] [samples]   move the bike (default 0.6 g, 10 samples)
  sim tap                   single bump below the validation threshold
  sim rider on|off          rider sensor
  sim connect [mtu]         phone connects
  sim disconnect            phone leaves
  sim write <char> <body>   characteristic write (config, command)
  sim fix on|off|<lat> <lon>
  sim network on|off
  sim smsfail on|off
  sim sent                  list delivered messages
  sim wake                  end a deep sleep early`

// Control runs one bench command (without the leading "sim").
func (h *Hardware) Control(line string) string {
	args, err := shlex.Split(line)
	if err != nil {
		return "sim: " + err.Error()
	}
	if len(args) == 0 {
		return benchHelp
	}
	switch args[0] {
	case "shake":
		g, n := float32(0.6), 10
		if len(args) > 1 {
			if v, err := strconv.ParseFloat(args[1], 32); err == nil {
				g = float32(v)
			}
		}
		if len(args) > 2 {
			if v, err := strconv.Atoi(args[2]); err == nil {
				n = v
			}
		}
		h.Accel.Shake(g, n)
		return "shaken " + strconv.FormatFloat(float64(g), 'f', 2, 32) + " g"
	case "tap":
		h.Accel.Shake(DefaultWakeG, 1)
		return "tapped"
	case "rider":
		on, ok := onOff(args)
		if !ok {
			return "usage: sim rider on|off"
		}
		h.Presence.Set(on)
		return "rider " + args[1]
	case "connect":
		mtu := h.Profile.Link.MTU
		if len(args) > 1 {
			if v, err := strconv.Atoi(args[1]); err == nil {
				mtu = v
			}
		}
		h.Radio.Inject("C " + strconv.Itoa(mtu))
		return "connected"
	case "disconnect":
		h.Radio.Inject("D")
		return "disconnected"
	case "write":
		if len(args) < 3 {
			return "usage: sim write <char> <body>"
		}
		h.Radio.Inject("W " + args[1] + " " + strings.Join(args[2:], " "))
		return "written"
	case "fix":
		if len(args) == 3 {
			lat, err1 := strconv.ParseFloat(args[1], 64)
			lon, err2 := strconv.ParseFloat(args[2], 64)
			if err1 != nil || err2 != nil {
				return "usage: sim fix <lat> <lon>"
			}
			h.Modem.SetFix(lat, lon)
			return "fix moved"
		}
		on, ok := onOff(args)
		if !ok {
			return "usage: sim fix on|off|<lat> <lon>"
		}
		h.Modem.SetFixAvailable(on)
		return "fix " + args[1]
	case "network":
		on, ok := onOff(args)
		if !ok {
			return "usage: sim network on|off"
		}
		h.Modem.SetNetwork(on)
		return "network " + args[1]
	case "smsfail":
		on, ok := onOff(args)
		if !ok {
			return "usage: sim smsfail on|off"
		}
		h.Modem.SetFailSMS(on)
		return "smsfail " + args[1]
	case "sent":
		sent := h.Modem.Sent()
		if len(sent) == 0 {
			return "no messages"
		}
		var b strings.Builder
		for i, s := range sent {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(strconv.Itoa(i+1) + " -> " + s.Number + ": " + strings.ReplaceAll(s.Text, "\n", " | "))
		}
		return b.String()
	case "wake":
		select {
		case h.wake <- struct{}{}:
		default:
		}
		return "wake pulse"
	case "help":
		return benchHelp
	}
	return "sim: unknown command " + args[0]
}

// Wake is pulsed by "sim wake".
func (h *Hardware) Wake() <-chan struct{} { return h.wake }

func onOff(args []string) (bool, bool) {
	if len(args) != 2 {
		return false, false
	}
	switch args[1] {
	case "on":
		return true, true
	case "off":
		return false, true
	}
	return false, false
}

// Console splits a terminal: "sim ..." lines are bench commands answered
// on out, everything else is passed through to the returned reader.
func (h *Hardware) Console(in io.Reader, out io.Writer) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if rest, ok := strings.CutPrefix(line, "sim"); ok && (rest == "" || rest[0] == ' ') {
				_, _ = io.WriteString(out, h.Control(rest)+"\n")
				continue
			}
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				return
			}
		}
		_ = pw.CloseWithError(sc.Err())
	}()
	return pr
}

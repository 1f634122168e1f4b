package sim

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"biketrack-go/drivers/sim7070"
	"biketrack-go/errcode"
)

func fastModem(m *ATModem) *sim7070.Device {
	cfg := sim7070.DefaultConfig()
	cfg.CmdTimeout = 100 * time.Millisecond
	cfg.PromptTimeout = 100 * time.Millisecond
	cfg.SendTimeout = 100 * time.Millisecond
	cfg.Delay = func(ctx context.Context, _ time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
			return nil
		}
	}
	return sim7070.New(m, cfg, nil)
}

func TestATModemServesDriverFix(t *testing.T) {
	m := NewATModem(51.5074, -0.1278)
	d := fastModem(m)

	f, err := d.AcquireFix(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("AcquireFix: %v", err)
	}
	if f.Latitude != "51.507400" || f.Longitude != "-0.127800" {
		t.Fatalf("fix=%+v", f)
	}

	m.SetFixAvailable(false)
	if _, err := d.AcquireFix(context.Background(), 50*time.Millisecond); !errors.Is(err, errcode.NoFix) {
		t.Fatalf("err=%v want no_fix", err)
	}
}

func TestATModemAcceptsSMS(t *testing.T) {
	m := NewATModem(0, 0)
	var seen atomic.Int32
	m.OnSMS = func(SMS) { seen.Add(1) }
	d := fastModem(m)

	if err := d.SendSMS(context.Background(), "+447700900123", "geo:51.5,-0.1"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	sent := m.Sent()
	if len(sent) != 1 || sent[0].Number != "+447700900123" || sent[0].Text != "geo:51.5,-0.1" {
		t.Fatalf("sent=%+v", sent)
	}
	if seen.Load() != 1 {
		t.Fatal("OnSMS not called")
	}
}

func TestATModemFailures(t *testing.T) {
	cases := []struct {
		name string
		set  func(*ATModem)
		want errcode.Code
	}{
		{"no network", func(m *ATModem) { m.SetNetwork(false) }, errcode.NoNetwork},
		{"rejected", func(m *ATModem) { m.SetFailSMS(true) }, errcode.SendFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewATModem(0, 0)
			tc.set(m)
			err := fastModem(m).SendSMS(context.Background(), "+447700900123", "x")
			if got := errcode.Of(err); got != tc.want {
				t.Fatalf("code=%v want %v (err=%v)", got, tc.want, err)
			}
			if len(m.Sent()) != 0 {
				t.Fatal("message delivered")
			}
		})
	}
}

func TestAccelShakeFiresWhenArmed(t *testing.T) {
	a := NewAccel()
	var fired atomic.Int32
	a.Attach(func() { fired.Add(1) })

	a.Shake(0.6, 2)
	if fired.Load() != 0 {
		t.Fatal("fired while interrupt disabled")
	}
	_ = a.EnableWakeInterrupt()
	a.Shake(0.1, 1)
	if fired.Load() != 0 {
		t.Fatal("fired below wake threshold")
	}
	a.Shake(0.6, 2)
	if fired.Load() != 1 {
		t.Fatalf("fired=%d", fired.Load())
	}
	a.Shake(0.6, 2)
	if fired.Load() != 1 {
		t.Fatal("latched interrupt fired twice")
	}
	_ = a.ClearInterrupt()
	a.Shake(0.6, 2)
	if fired.Load() != 2 {
		t.Fatalf("no edge after clear: fired=%d", fired.Load())
	}
	for i, want := range []float32{0.6, 0.6, 0.01} {
		got, err := a.ReadDelta()
		if err != nil || got != want {
			t.Fatalf("read %d = %v,%v want %v", i, got, err, want)
		}
	}
	_ = a.PowerDown()
	if _, err := a.ReadDelta(); !errors.Is(err, ErrPoweredDown) {
		t.Fatalf("err=%v", err)
	}
}

func TestRadioReannouncesOnAdvertise(t *testing.T) {
	var out strings.Builder
	r := NewRadio(&out)
	r.Inject("C 185")

	buf := make([]byte, 64)
	n, _ := r.RecvSomeContext(context.Background(), buf)
	if string(buf[:n]) != "C 185\n" {
		t.Fatalf("got %q", buf[:n])
	}

	_, _ = r.Write([]byte("A\n"))
	n, _ = r.RecvSomeContext(context.Background(), buf)
	if string(buf[:n]) != "C 185\n" {
		t.Fatalf("after advertise got %q", buf[:n])
	}
	if !r.Advertised() || !strings.Contains(out.String(), "[ble] A") {
		t.Fatalf("out=%q", out.String())
	}

	r.Inject("D")
	_, _ = r.RecvSomeContext(context.Background(), buf)
	_, _ = r.Write([]byte("A\n"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.RecvSomeContext(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("disconnected radio re-announced: %v", err)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.toml")
	doc := `
time_scale = 20.0

[gnss]
lat = 48.8566
lon = 2.3522
external = true

[modem]
fail_sms = true

[tracker]
quiet_period_ms = 4000
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.TimeScale != 20 || p.GNSS.Lat != 48.8566 || !p.GNSS.External {
		t.Fatalf("profile=%+v", p)
	}
	if !p.Modem.Network || !p.Modem.FailSMS || p.Link.MTU != 185 {
		t.Fatalf("defaults lost: %+v", p)
	}
	if p.Tracker.QuietPeriodMs != 4000 {
		t.Fatalf("tracker=%+v", p.Tracker)
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("colour = \"red\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(bad); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("err=%v want invalid_params", err)
	}
}

func TestControlCommands(t *testing.T) {
	var out strings.Builder
	h := New(DefaultProfile(), &out)

	cases := []struct {
		line string
		want string
		ok   func() bool
	}{
		{"rider on", "rider on", h.Presence.Present},
		{"network off", "network off", func() bool { return !h.Modem.network }},
		{"fix 1.5 2.5", "fix moved", func() bool { lat, lon, ok := h.Modem.Position(); return ok && lat == 1.5 && lon == 2.5 }},
		{"fix off", "fix off", func() bool { _, _, ok := h.Modem.Position(); return !ok }},
		{"connect 64", "connected", h.Radio.Connected},
		{`write config '{"phone_number":"+15551234"}'`, "written", func() bool { return true }},
		{"sent", "no messages", func() bool { return true }},
		{"bogus", "sim: unknown command bogus", func() bool { return true }},
		{"rider maybe", "usage: sim rider on|off", func() bool { return true }},
	}
	for _, tc := range cases {
		if got := h.Control(tc.line); got != tc.want {
			t.Fatalf("%q -> %q want %q", tc.line, got, tc.want)
		}
		if !tc.ok() {
			t.Fatalf("%q had no effect", tc.line)
		}
	}

	buf := make([]byte, 128)
	n, _ := h.Radio.RecvSomeContext(context.Background(), buf)
	if got := string(buf[:n]); got != "C 64\nW config {\"phone_number\":\"+15551234\"}\n" {
		t.Fatalf("radio lines %q", got)
	}

	h.Control("wake")
	select {
	case <-h.Wake():
	default:
		t.Fatal("no wake pulse")
	}
}

func TestConsoleSplitsBenchLines(t *testing.T) {
	var out strings.Builder
	h := New(DefaultProfile(), &out)
	in := strings.NewReader("status\nsim rider on\nsimulate\n")

	sc := bufio.NewScanner(h.Console(in, &out))
	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	if strings.Join(got, ",") != "status,simulate" {
		t.Fatalf("passed through %q", got)
	}
	if !h.Presence.Present() || !strings.Contains(out.String(), "rider on") {
		t.Fatalf("bench line not handled: %q", out.String())
	}
}

package tracker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"biketrack-go/errcode"
	"biketrack-go/services/history"
	"biketrack-go/services/tracker/internal/alert"
	"biketrack-go/types"
)

const pagePrefix = "PAGE:"

// drainBus handles queued link events and console requests without blocking.
func (d *Device) drainBus(ctx context.Context) {
	if d.linkSub == nil {
		return
	}
	for {
		select {
		case m, ok := <-d.linkSub.Channel():
			if !ok {
				return
			}
			if ev, ok := m.Payload.(types.LinkEvent); ok {
				d.handleLinkEvent(ev)
			}
		case m, ok := <-d.consoleSub.Channel():
			if !ok {
				return
			}
			if cmd, ok := m.Payload.(types.ConsoleCommand); ok {
				d.conn.Reply(m, d.handleConsole(ctx, cmd), false)
			}
		default:
			return
		}
	}
}

func (d *Device) handleLinkEvent(ev types.LinkEvent) {
	if ev.MTU > 0 {
		d.mtu = ev.MTU
	}
	switch ev.Kind {
	case types.LinkConfigApplied:
		d.log.Info("config updated over link")
	case types.LinkCommand:
		if err := d.handleCommand(strings.TrimSpace(ev.Body)); err != nil {
			d.log.Warn("command rejected", "cmd", ev.Body, "err", err)
		}
	}
}

// handleCommand serves the Command characteristic.
func (d *Device) handleCommand(cmd string) error {
	switch {
	case cmd == "SYNC":
		d.pushHistory(d.hist.Payload(0))
	case cmd == "CLEAR_HISTORY":
		d.hist.Clear()
		d.pushHistory(d.hist.Payload(0))
	case strings.HasPrefix(cmd, pagePrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(cmd, pagePrefix))
		if err != nil || n < 0 {
			return &errcode.E{C: errcode.InvalidParams, Op: "command", Msg: "bad page"}
		}
		d.pushHistory(d.hist.Page(n, history.PageSizeForMTU(d.mtu)))
	default:
		return &errcode.E{C: errcode.Unsupported, Op: "command", Msg: cmd}
	}
	return nil
}

// handleConsole runs one debug-console command and returns its output.
func (d *Device) handleConsole(ctx context.Context, cmd types.ConsoleCommand) string {
	switch cmd.Name {
	case "test":
		return d.selfTest()
	case "gps":
		fix, err := d.modem.AcquireFix(ctx, time.Duration(d.params.FixTimeoutMs)*time.Millisecond)
		if err != nil || !fix.Valid {
			if err == nil {
				err = errcode.NoFix
			}
			return "gps: " + err.Error()
		}
		if fix.TimestampMs == 0 {
			fix.TimestampMs = d.clk.UptimeMs()
		}
		d.hist.SetLastFix(fix)
		return "gps: " + fix.Latitude + "," + fix.Longitude
	case "sms":
		cfg := d.settings.Current()
		if cfg.PhoneNumber == "" {
			return "sms: " + errcode.NotConfigured.Error()
		}
		if err := d.modem.SendSMS(ctx, cfg.PhoneNumber, alert.TestMessage(d.clk.UptimeMs())); err != nil {
			return "sms: " + err.Error()
		}
		return "sms: sent to " + cfg.PhoneNumber
	case "status":
		return d.statusText()
	case "history":
		return d.historyText()
	case "clear":
		d.hist.Clear()
		d.pushHistory(d.hist.Payload(0))
		return "history cleared"
	case "clearconfig":
		d.settings.Reset()
		return "config reset to defaults"
	case "sync":
		d.pushHistory(d.hist.Payload(0))
		return "history pushed (" + strconv.Itoa(d.hist.Len()) + " entries)"
	}
	return "unknown command: " + cmd.Name
}

func (d *Device) selfTest() string {
	var b strings.Builder
	if _, err := d.gate.Probe(); err != nil {
		b.WriteString("accel: FAIL " + err.Error() + "\n")
	} else {
		b.WriteString("accel: ok\n")
	}
	b.WriteString("presence: " + yesNo(d.presence.Present()) + "\n")
	b.WriteString("link: " + yesNo(d.link.Connected()) + "\n")
	b.WriteString("motion irqs: " + strconv.FormatUint(uint64(d.latch.Raised()), 10))
	return b.String()
}

func (d *Device) statusText() string {
	cfg := d.settings.Current()
	var b strings.Builder
	b.WriteString("state: " + d.state.String() + "\n")
	b.WriteString("mode: " + d.status.Mode.String() + "\n")
	b.WriteString("boot: " + d.boot.String() + "\n")
	b.WriteString("phone: " + cfg.PhoneNumber + "\n")
	b.WriteString("interval: " + strconv.FormatUint(uint64(cfg.UpdateIntervalSec), 10) + "s\n")
	b.WriteString("alerts: " + yesNo(cfg.AlertsEnabled) + "\n")
	b.WriteString("alert sent: " + yesNo(d.ws.AlertSent) + " at " + strconv.FormatInt(d.ws.LastAlertMs, 10) + "ms\n")
	b.WriteString("history: " + strconv.Itoa(d.hist.Len()))
	return b.String()
}

func (d *Device) historyText() string {
	entries := d.hist.Entries()
	if len(entries) == 0 {
		return "history empty"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i+1) + ": " + e.Latitude + "," + e.Longitude +
			" t=" + strconv.FormatInt(e.TimestampMs, 10) + " src=" + strconv.Itoa(int(e.Source)))
	}
	return b.String()
}

// publishStatus pushes the Status snapshot (and Location) when it changed.
func (d *Device) publishStatus() {
	if d.conn == nil {
		return
	}
	cfg := d.settings.Current()
	fix, _ := d.hist.LastFix()
	st := types.StatusPayload{
		BLE:             d.status.LinkConnected,
		PhoneConfigured: cfg.PhoneNumber != "",
		Phone:           cfg.PhoneNumber,
		Interval:        cfg.UpdateIntervalSec,
		Alerts:          cfg.AlertsEnabled,
		User:            d.status.UserPresent,
		Mode:            d.status.Mode.String(),
		GPSValid:        fix.Valid,
		Lat:             fix.Latitude,
		Lon:             fix.Longitude,
	}
	loc := types.LocationPayload{Lat: fix.Latitude, Lon: fix.Longitude, Valid: fix.Valid, Time: fix.TimestampMs}
	if d.published && st == d.lastStatus && loc == d.lastLocation {
		return
	}
	if !d.published || st != d.lastStatus {
		d.conn.Publish(d.conn.NewMessage(TopicStatus, st, true))
	}
	if !d.published || loc != d.lastLocation {
		d.conn.Publish(d.conn.NewMessage(TopicLocation, loc, true))
	}
	d.lastStatus, d.lastLocation, d.published = st, loc, true
}

func (d *Device) pushHistory(p types.HistoryPayload) {
	if d.conn == nil {
		return
	}
	d.conn.Publish(d.conn.NewMessage(TopicHistory, p, false))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

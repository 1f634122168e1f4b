package tracker

import (
	"context"
	"errors"
	"time"

	"biketrack-go/bus"
	"biketrack-go/services/history"
	"biketrack-go/services/settings"
	"biketrack-go/services/tracker/internal/alert"
	"biketrack-go/services/tracker/internal/link"
	"biketrack-go/services/tracker/internal/motion"
	"biketrack-go/services/tracker/internal/presence"
	"biketrack-go/services/tracker/internal/wake"
	"biketrack-go/types"
	"biketrack-go/x/logx"
	"biketrack-go/x/mathx"
	"biketrack-go/x/timex"
)

// Deps are the injected collaborators.
type Deps struct {
	Clock    timex.Clock
	Settings *settings.Store
	History  *history.Log
	Retained wake.Store
	Modem    Modem
	Accel    Accelerometer
	Latch    *motion.Latch
	Presence PresenceSensor
	Link     Link
	Sleeper  Sleeper
	Conn     *bus.Connection
	Log      logx.Logger
}

type Device struct {
	clk      timex.Clock
	settings *settings.Store
	hist     *history.Log
	retained wake.Store
	modem    Modem
	presence PresenceSensor
	link     Link
	sleeper  Sleeper
	latch    *motion.Latch
	conn     *bus.Connection
	log      logx.Logger
	params   types.TrackerParams

	gate  *motion.Gate
	mon   *link.Monitor
	sched *alert.Scheduler

	boot           wake.BootReason
	state          PowerState
	ws             wake.State
	status         types.DeviceStatus
	motionAccepted bool
	quietSince     int64
	busySince      int64
	retrying       bool
	monitorUntilMs int64
	historyPushAt  int64
	mtu            int

	lastStatus   types.StatusPayload
	lastLocation types.LocationPayload
	published    bool

	linkSub    *bus.Subscription
	consoleSub *bus.Subscription
}

// New wires a Device. Zero-valued params fall back to defaults.
func New(deps Deps, p types.TrackerParams) *Device {
	p = withDefaults(p)
	log := deps.Log
	if log == nil {
		log = logx.Nop()
	}
	d := &Device{
		clk:      deps.Clock,
		settings: deps.Settings,
		hist:     deps.History,
		retained: deps.Retained,
		modem:    deps.Modem,
		presence: deps.Presence,
		link:     deps.Link,
		sleeper:  deps.Sleeper,
		latch:    deps.Latch,
		conn:     deps.Conn,
		log:      log,
		params:   p,
		mtu:      23,
	}
	d.gate = motion.NewGate(deps.Accel, deps.Latch, deps.Clock,
		time.Duration(p.MotionSampleDelayMs)*time.Millisecond, log)
	d.sched = alert.New(deps.Modem, deps.History, deps.Settings.Current, deps.Clock,
		time.Duration(p.FixTimeoutMs)*time.Millisecond, log)
	return d
}

func withDefaults(p types.TrackerParams) types.TrackerParams {
	def := types.DefaultTrackerParams()
	if p.QuietPeriodMs <= 0 {
		p.QuietPeriodMs = def.QuietPeriodMs
	}
	if p.MotionSamples <= 0 {
		p.MotionSamples = def.MotionSamples
	}
	if p.MotionThresholdG <= 0 {
		p.MotionThresholdG = def.MotionThresholdG
	}
	if p.MotionSampleDelayMs < 0 {
		p.MotionSampleDelayMs = def.MotionSampleDelayMs
	}
	if p.FixTimeoutMs <= 0 {
		p.FixTimeoutMs = def.FixTimeoutMs
	}
	if p.MonitorWindowMs <= 0 {
		p.MonitorWindowMs = def.MonitorWindowMs
	}
	if p.RetryBackoffMs <= 0 {
		p.RetryBackoffMs = def.RetryBackoffMs
	}
	if p.HistoryPushDelayMs <= 0 {
		p.HistoryPushDelayMs = def.HistoryPushDelayMs
	}
	if p.LoopTickMs <= 0 {
		p.LoopTickMs = def.LoopTickMs
	}
	p.MotionSamples = mathx.Clamp(p.MotionSamples, 1, 50)
	return p
}

// Boot restores state for this start. Retained WakeState is trusted only
// when reason is a sleep wake.
func (d *Device) Boot(reason wake.BootReason) error {
	d.boot = reason
	cfg := d.settings.Load()
	if err := d.hist.Restore(); err != nil {
		d.log.Warn("history not restored", "err", err)
	}

	ws, err := wake.Restore(d.retained, reason)
	if err != nil {
		d.log.Warn("retained state unusable", "reason", reason.String(), "err", err)
	}
	d.ws = ws
	if !reason.SleepWake() {
		d.ws.HasValidConfigAtBoot = cfg.AlertsActive()
	} else if d.ws.HasValidConfigAtBoot != cfg.AlertsActive() {
		d.log.Warn("alert config changed across sleep",
			"valid_at_boot", d.ws.HasValidConfigAtBoot, "alerts_active", cfg.AlertsActive())
	}

	now := d.clk.UptimeMs()
	hooks := link.Hooks{
		ArmMotion:    d.armMotion,
		DisarmMotion: d.disarmMotion,
		ResetModem:   d.resetModem,
	}
	d.mon = link.NewMonitor(!reason.SleepWake(), hooks, d.log)
	d.enterAwake(now)

	if d.conn != nil && d.linkSub == nil {
		d.linkSub = d.conn.Subscribe(TopicLink)
		d.consoleSub = d.conn.Subscribe(TopicConsole)
	}

	if reason.SleepWake() {
		d.state = StateTimerWakeMonitor
		d.monitorUntilMs = now + d.params.MonitorWindowMs
		if err := d.link.StartAdvertising(); err != nil {
			d.log.Warn("advertising not restarted", "err", err)
		}
	}
	d.log.Info("boot", "reason", reason.String(), "state", d.state.String(),
		"alert_sent", d.ws.AlertSent, "alerts_active", cfg.AlertsActive(),
		"config_valid_at_boot", d.ws.HasValidConfigAtBoot)
	return d.saveRetained()
}

// Step runs one iteration of the decision loop.
func (d *Device) Step(ctx context.Context) Decision {
	now := d.clk.UptimeMs()
	connected := d.link.Connected()
	switch d.mon.Update(connected, &d.ws) {
	case link.EdgeConnect:
		d.sched.Cancel()
		d.motionAccepted = false
		d.enterAwake(now)
		d.historyPushAt = now + d.params.HistoryPushDelayMs
		d.persistRetained()
	case link.EdgeDisconnect:
		d.motionAccepted = false
		d.enterAwake(now)
		d.persistRetained()
	}

	var lastFixMs int64
	if f, ok := d.hist.LastFix(); ok {
		lastFixMs = f.TimestampMs
	}
	d.status = presence.Status(connected, d.presence.Present(), lastFixMs)

	d.drainBus(ctx)
	if d.settings.Dirty() {
		if err := d.settings.Flush(); err != nil {
			d.log.Warn("config not persisted", "err", err)
		}
	}

	if d.gate.PollRaw() && d.gate.Validate(d.params.MotionSamples, d.params.MotionThresholdG) {
		d.motionAccepted = true
		d.quietSince = d.clk.UptimeMs()
	}

	out := d.sched.Step(ctx, &d.ws, alert.Input{
		Mode:           d.status.Mode,
		UserPresent:    d.status.UserPresent,
		MotionAccepted: d.motionAccepted,
		LinkUp:         d.link.Connected,
	})
	switch out {
	case alert.Sent, alert.Failed:
		d.persistRetained()
	}
	if out == alert.Sent {
		d.motionAccepted = false
	}

	d.publishStatus()
	if d.historyPushAt != 0 && d.clk.UptimeMs() >= d.historyPushAt {
		d.historyPushAt = 0
		d.pushHistory(d.hist.Payload(0))
	}
	return d.decide(d.clk.UptimeMs())
}

// LightSleep halts with only the motion pins armed and returns once a wake
// is validated. Rejected wakes re-enter the same sleep.
func (d *Device) LightSleep(ctx context.Context) error {
	d.state = StateLightSleepMotionWait
	if !d.gate.Armed() {
		d.armMotion()
	}
	for {
		if err := d.gate.EnterLowPower(); err != nil {
			d.log.Warn("accel low-power failed", "err", err)
		}
		d.log.Debug("light sleep")
		if err := d.sleeper.LightSleep(ctx, d.latch.Wake()); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.gate.ExitLowPower(); err != nil {
			d.log.Warn("accel resume failed", "err", err)
		}
		if !d.gate.PollRaw() {
			continue
		}
		if d.gate.Validate(d.params.MotionSamples, d.params.MotionThresholdG) {
			now := d.clk.UptimeMs()
			d.enterAwake(now)
			d.motionAccepted = true
			if d.settings.Current().AlertsActive() {
				d.ws.MotionWakeNeedsAlert = true
				d.persistRetained()
			}
			d.log.Info("woke on motion")
			return nil
		}
		d.log.Debug("false wake")
	}
}

// PrepareDeepSleep powers peripherals down, parks the interrupt lines and
// saves the retained record.
func (d *Device) PrepareDeepSleep(ctx context.Context) error {
	d.state = StateDeepSleepTimerWait
	var errs []error
	if err := d.gate.Disarm(); err != nil {
		errs = append(errs, err)
	}
	if err := d.modem.PowerDown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.sleeper.ParkPins(); err != nil {
		errs = append(errs, err)
	}
	if d.settings.Dirty() {
		if err := d.settings.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.saveRetained(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run loops until a deep sleep is due or ctx ends. The caller performs the
// sleep; waking restarts the program.
func (d *Device) Run(ctx context.Context) (SleepRequest, error) {
	tick := time.Duration(d.params.LoopTickMs) * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return SleepRequest{}, err
		}
		dec := d.Step(ctx)
		switch dec.Action {
		case ActDeepSleep:
			if err := d.PrepareDeepSleep(ctx); err != nil {
				d.log.Warn("deep sleep preparation incomplete", "err", err)
			}
			d.log.Info("deep sleep", "ms", dec.Sleep.Milliseconds())
			return SleepRequest{Duration: dec.Sleep}, nil
		case ActLightSleep:
			if err := d.LightSleep(ctx); err != nil {
				return SleepRequest{}, err
			}
		default:
			d.clk.Sleep(tick)
		}
	}
}

// Close drops the bus subscriptions. An emulated reboot builds a new
// Device on the same bus.
func (d *Device) Close() {
	if d.conn == nil || d.linkSub == nil {
		return
	}
	d.conn.Unsubscribe(d.linkSub)
	d.conn.Unsubscribe(d.consoleSub)
	d.linkSub, d.consoleSub = nil, nil
}

// State is the current power state.
func (d *Device) State() PowerState { return d.state }

// WakeState returns a copy of the retained decision state.
func (d *Device) WakeState() wake.State { return d.ws }

// Status is the last computed DeviceStatus.
func (d *Device) Status() types.DeviceStatus { return d.status }

func (d *Device) armMotion() {
	if err := d.gate.Arm(); err != nil {
		d.log.Warn("motion arm failed", "err", err)
	}
}

func (d *Device) disarmMotion() {
	if err := d.gate.Disarm(); err != nil {
		d.log.Warn("motion disarm failed", "err", err)
	}
}

func (d *Device) resetModem() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.modem.Reset(ctx); err != nil {
		d.log.Warn("modem reset failed", "err", err)
	}
}

func (d *Device) saveRetained() error { return d.retained.Save(d.ws) }

func (d *Device) persistRetained() {
	if err := d.saveRetained(); err != nil {
		d.log.Warn("retained state not saved", "err", err)
	}
}

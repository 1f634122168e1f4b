// Package sim7070 drives a SIMCom SIM7070G over its AT command UART: GNSS
// fixes via AT+CGNSINF and text-mode SMS via AT+CMGS.
//
// GNSS and LTE share the RF front end, so SendSMS turns GNSS off before
// touching the network and AcquireFix resets the module first.
package sim7070

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"biketrack-go/errcode"
	"biketrack-go/types"
	"biketrack-go/x/logx"
)

const (
	ctrlZ = 0x1A
	esc   = 0x1B
)

// Port is the byte stream to the module. tinygo-uartx ports satisfy it
// directly; the host simulator supplies a scripted one.
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// Config holds timings. Zero fields use the defaults below.
type Config struct {
	CmdTimeout     time.Duration // plain command, default 2s
	ResetWait      time.Duration // after AT+CFUN=1,1, default 10s
	ReadyRetries   int           // AT probes after reset, default 10
	GNSSWarmup     time.Duration // after AT+CGNSPWR=1, default 2s
	FixPoll        time.Duration // between CGNSINF polls, default 2s
	GNSSSettle     time.Duration // after AT+CGNSPWR=0, default 5s
	RegRetries     int           // AT+CREG? attempts, default 15
	RegPoll        time.Duration // between registration checks, default 2s
	PromptTimeout  time.Duration // waiting for '>', default 5s
	SendTimeout    time.Duration // waiting for +CMGS, default 30s
	ResetBeforeFix bool

	// Delay waits between steps. Default honours ctx with a timer.
	Delay func(ctx context.Context, d time.Duration) error
}

func DefaultConfig() Config {
	return Config{
		CmdTimeout:     2 * time.Second,
		ResetWait:      10 * time.Second,
		ReadyRetries:   10,
		GNSSWarmup:     2 * time.Second,
		FixPoll:        2 * time.Second,
		GNSSSettle:     5 * time.Second,
		RegRetries:     15,
		RegPoll:        2 * time.Second,
		PromptTimeout:  5 * time.Second,
		SendTimeout:    30 * time.Second,
		ResetBeforeFix: true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CmdTimeout <= 0 {
		c.CmdTimeout = def.CmdTimeout
	}
	if c.ResetWait <= 0 {
		c.ResetWait = def.ResetWait
	}
	if c.ReadyRetries <= 0 {
		c.ReadyRetries = def.ReadyRetries
	}
	if c.GNSSWarmup <= 0 {
		c.GNSSWarmup = def.GNSSWarmup
	}
	if c.FixPoll <= 0 {
		c.FixPoll = def.FixPoll
	}
	if c.GNSSSettle <= 0 {
		c.GNSSSettle = def.GNSSSettle
	}
	if c.RegRetries <= 0 {
		c.RegRetries = def.RegRetries
	}
	if c.RegPoll <= 0 {
		c.RegPoll = def.RegPoll
	}
	if c.PromptTimeout <= 0 {
		c.PromptTimeout = def.PromptTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.Delay == nil {
		c.Delay = sleepCtx
	}
	return c
}

var errATError = errors.New("sim7070: ERROR response")

type Device struct {
	port Port
	cfg  Config
	log  logx.Logger
	buf  [128]byte
	gnss bool
}

func New(port Port, cfg Config, log logx.Logger) *Device {
	if log == nil {
		log = logx.Nop()
	}
	return &Device{port: port, cfg: cfg.withDefaults(), log: log}
}

// Init checks the module answers and selects SMS text mode.
func (d *Device) Init(ctx context.Context) error {
	if err := d.waitReady(ctx, d.cfg.ReadyRetries); err != nil {
		return err
	}
	if _, err := d.cmd(ctx, "AT+CMGF=1", "OK", d.cfg.CmdTimeout); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "sim7070.init", err)
	}
	return nil
}

// Reset power-cycles the module and waits for it to answer AT again.
func (d *Device) Reset(ctx context.Context) error {
	d.log.Info("modem reset")
	if _, err := d.cmd(ctx, "AT+CFUN=1,1", "OK", d.cfg.CmdTimeout); err != nil {
		d.log.Warn("reset not acknowledged", "err", err)
	}
	d.gnss = false
	if err := d.cfg.Delay(ctx, d.cfg.ResetWait); err != nil {
		return err
	}
	return d.waitReady(ctx, d.cfg.ReadyRetries)
}

// AcquireFix powers GNSS and polls AT+CGNSINF until a valid fix or timeout.
func (d *Device) AcquireFix(ctx context.Context, timeout time.Duration) (types.Fix, error) {
	if d.cfg.ResetBeforeFix {
		if err := d.Reset(ctx); err != nil {
			d.log.Warn("reset before fix failed", "err", err)
		}
	}
	if err := d.SetGNSS(ctx, true); err != nil {
		return types.Fix{}, err
	}
	if err := d.cfg.Delay(ctx, d.cfg.GNSSWarmup); err != nil {
		return types.Fix{}, err
	}

	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		resp, err := d.cmd(fctx, "AT+CGNSINF", "OK", d.cfg.CmdTimeout)
		if err == nil {
			if f, ok := ParseCGNSINF(resp); ok {
				d.log.Info("gnss fix", "lat", f.Latitude, "lon", f.Longitude)
				return f, nil
			}
		}
		if err := d.cfg.Delay(fctx, d.cfg.FixPoll); err != nil {
			if ctx.Err() != nil {
				return types.Fix{}, ctx.Err()
			}
			return types.Fix{}, errcode.Wrap(errcode.NoFix, "sim7070.fix", err)
		}
	}
}

// SetGNSS switches the GNSS engine.
func (d *Device) SetGNSS(ctx context.Context, on bool) error {
	at := "AT+CGNSPWR=0"
	if on {
		at = "AT+CGNSPWR=1"
	}
	if _, err := d.cmd(ctx, at, "OK", d.cfg.CmdTimeout); err != nil {
		return errcode.Wrap(errcode.ModemNotReady, "sim7070.gnss", err)
	}
	d.gnss = on
	return nil
}

// SendSMS sends one text message. GNSS is switched off first.
func (d *Device) SendSMS(ctx context.Context, number, text string) error {
	const op = "sim7070.sms"
	if number == "" {
		return errcode.Wrap(errcode.NotConfigured, op, nil)
	}
	if d.gnss {
		if err := d.SetGNSS(ctx, false); err != nil {
			d.log.Warn("gnss off failed", "err", err)
		}
		if err := d.cfg.Delay(ctx, d.cfg.GNSSSettle); err != nil {
			return err
		}
	}

	// Leave any half-open prompt.
	_, _ = d.port.Write([]byte{esc})
	if err := d.waitReady(ctx, 3); err != nil {
		return err
	}
	if err := d.waitRegistered(ctx); err != nil {
		return err
	}
	if _, err := d.cmd(ctx, "AT+CMGF=1", "OK", d.cfg.CmdTimeout); err != nil {
		return errcode.Wrap(errcode.SendFailed, op, err)
	}

	if _, err := d.cmd(ctx, `AT+CMGS="`+number+`"`, ">", d.cfg.PromptTimeout); err != nil {
		_, _ = d.port.Write([]byte{esc})
		return errcode.Wrap(errcode.SendFailed, op, err)
	}
	if _, err := d.port.Write(append([]byte(text), ctrlZ)); err != nil {
		return errcode.Wrap(errcode.SendFailed, op, err)
	}
	resp, err := d.expect(ctx, "OK", d.cfg.SendTimeout)
	if err != nil || !strings.Contains(resp, "+CMGS:") {
		if err == nil {
			err = errATError
		}
		return errcode.Wrap(errcode.SendFailed, op, err)
	}
	d.log.Info("sms sent", "len", len(text))
	return nil
}

// PowerDown stops GNSS and drops to minimum functionality.
func (d *Device) PowerDown(ctx context.Context) error {
	var errs []error
	if err := d.SetGNSS(ctx, false); err != nil {
		errs = append(errs, err)
	}
	if _, err := d.cmd(ctx, "AT+CFUN=0", "OK", d.cfg.CmdTimeout); err != nil {
		errs = append(errs, errcode.Wrap(errcode.ModemNotReady, "sim7070.powerdown", err))
	}
	return errors.Join(errs...)
}

func (d *Device) waitReady(ctx context.Context, tries int) error {
	var last error
	for i := 0; i < tries; i++ {
		_, err := d.cmd(ctx, "AT", "OK", d.cfg.CmdTimeout)
		if err == nil {
			return nil
		}
		last = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errcode.Wrap(errcode.ModemNotReady, "sim7070.ready", last)
}

func (d *Device) waitRegistered(ctx context.Context) error {
	for i := 0; i < d.cfg.RegRetries; i++ {
		resp, err := d.cmd(ctx, "AT+CREG?", "OK", d.cfg.CmdTimeout)
		if err == nil && registered(resp) {
			return nil
		}
		if i+1 < d.cfg.RegRetries {
			if err := d.cfg.Delay(ctx, d.cfg.RegPoll); err != nil {
				return err
			}
		}
	}
	return errcode.Wrap(errcode.NoNetwork, "sim7070.creg", nil)
}

// registered reports home (1) or roaming (5) from a +CREG: n,stat reply.
func registered(resp string) bool {
	i := strings.Index(resp, "+CREG:")
	if i < 0 {
		return false
	}
	line := resp[i+len("+CREG:"):]
	if j := strings.IndexAny(line, "\r\n"); j >= 0 {
		line = line[:j]
	}
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return false
	}
	stat := strings.TrimSpace(parts[1])
	return stat == "1" || stat == "5"
}

// cmd writes one command line and waits for want.
func (d *Device) cmd(ctx context.Context, at, want string, timeout time.Duration) (string, error) {
	if _, err := d.port.Write([]byte(at + "\r")); err != nil {
		return "", err
	}
	return d.expect(ctx, want, timeout)
}

// expect accumulates input until want appears, an error line arrives or
// timeout elapses.
func (d *Device) expect(ctx context.Context, want string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var sb strings.Builder
	for {
		n, err := d.port.RecvSomeContext(ctx, d.buf[:])
		if n > 0 {
			sb.Write(d.buf[:n])
			s := sb.String()
			if strings.Contains(s, want) {
				return s, nil
			}
			if strings.Contains(s, "ERROR") {
				return s, errATError
			}
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return sb.String(), errcode.Timeout
			}
			return sb.String(), err
		}
	}
}

// ParseCGNSINF extracts a fix from an AT+CGNSINF reply. Both the run and
// fix flags must be 1 and the coordinates non-empty and non-zero.
func ParseCGNSINF(resp string) (types.Fix, bool) {
	i := strings.Index(resp, "+CGNSINF:")
	if i < 0 {
		return types.Fix{}, false
	}
	line := resp[i+len("+CGNSINF:"):]
	if j := strings.IndexAny(line, "\r\n"); j >= 0 {
		line = line[:j]
	}
	f := strings.Split(strings.TrimSpace(line), ",")
	if len(f) < 5 || f[0] != "1" || f[1] != "1" {
		return types.Fix{}, false
	}
	lat, lon := strings.TrimSpace(f[3]), strings.TrimSpace(f[4])
	if !coord(lat) || !coord(lon) {
		return types.Fix{}, false
	}
	return types.Fix{Latitude: lat, Longitude: lon, Valid: true}, true
}

func coord(s string) bool {
	if s == "" || s == "0.000000" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

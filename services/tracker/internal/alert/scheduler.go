// Package alert is the theft-alert cadence engine.
package alert

import (
	"context"
	"time"

	"biketrack-go/errcode"
	"biketrack-go/services/history"
	"biketrack-go/services/tracker/internal/wake"
	"biketrack-go/types"
	"biketrack-go/x/logx"
	"biketrack-go/x/timex"
)

// Modem is the cellular collaborator.
type Modem interface {
	AcquireFix(ctx context.Context, timeout time.Duration) (types.Fix, error)
	SendSMS(ctx context.Context, number, text string) error
}

type Outcome uint8

const (
	Idle    Outcome = iota // nothing due
	Sent                   // alert delivered
	Failed                 // attempted, will retry next iteration
	Aborted                // cancelled at a check point
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	}
	return "?"
}

// Input is the per-iteration view the scheduler evaluates.
type Input struct {
	Mode           types.Mode
	UserPresent    bool
	MotionAccepted bool // gate accepted motion during this awake period
	// LinkUp is polled at check points; a true result aborts the attempt.
	LinkUp func() bool
}

type Scheduler struct {
	modem      Modem
	hist       *history.Log
	config     func() types.DeviceConfig
	clk        timex.Clock
	fixTimeout time.Duration
	log        logx.Logger

	pending *pendingFix
}

type pendingFix struct {
	fix    types.Fix
	cached bool
}

func New(modem Modem, hist *history.Log, config func() types.DeviceConfig, clk timex.Clock, fixTimeout time.Duration, log logx.Logger) *Scheduler {
	if log == nil {
		log = logx.Nop()
	}
	return &Scheduler{modem: modem, hist: hist, config: config, clk: clk, fixTimeout: fixTimeout, log: log}
}

// Due reports whether an attempt would be made for st and in, without
// side effects.
func (s *Scheduler) Due(st *wake.State, in Input) bool {
	if in.Mode != types.ModeDisconnected {
		return false
	}
	cfg := s.config()
	if !cfg.AlertsActive() {
		return false
	}
	switch {
	case st.MotionWakeNeedsAlert:
		return true
	case !st.AlertSent:
		return in.MotionAccepted
	case st.TimerWakeDue():
		return true
	default:
		return s.clk.UptimeMs()-st.LastAlertMs >= cfg.IntervalMs()
	}
}

// Step evaluates the cadence once and attempts at most one alert.
func (s *Scheduler) Step(ctx context.Context, st *wake.State, in Input) Outcome {
	if !s.Due(st, in) {
		return Idle
	}
	first := !st.AlertSent
	out := s.attempt(ctx, st, in, first)
	if out == Failed && first {
		// retry without waiting for new motion
		st.MotionWakeNeedsAlert = true
	}
	return out
}

// Pending reports whether a fix is held for an SMS retry.
func (s *Scheduler) Pending() bool { return s.pending != nil }

// Cancel drops any held fix.
func (s *Scheduler) Cancel() { s.pending = nil }

func (s *Scheduler) attempt(ctx context.Context, st *wake.State, in Input, first bool) Outcome {
	if s.pending == nil {
		p := s.acquire(ctx)
		s.pending = &p
	}
	if in.LinkUp != nil && in.LinkUp() {
		s.log.Info("alert aborted, link restored")
		s.pending = nil
		return Aborted
	}
	// a toggle received mid-cycle takes effect here
	cfg := s.config()
	if !cfg.AlertsActive() {
		s.log.Info("alert aborted, alerts disabled")
		s.pending = nil
		return Aborted
	}

	content := Content{
		Fix:         s.pending.fix,
		Cached:      s.pending.cached,
		UserPresent: in.UserPresent,
		IntervalSec: cfg.UpdateIntervalSec,
	}
	var prev types.HistoryEntry
	if s.hist != nil {
		prev, _ = s.hist.Latest()
	}
	content.Prev = prev.Fix

	parts := Compose(content)
	if err := s.modem.SendSMS(ctx, cfg.PhoneNumber, parts[0]); err != nil {
		s.log.Warn("alert send failed", "err", err, "code", errcode.MapDriverErr(err))
		return Failed
	}
	for _, part := range parts[1:] {
		if err := s.modem.SendSMS(ctx, cfg.PhoneNumber, part); err != nil {
			s.log.Warn("alert detail not sent", "err", err)
		}
	}

	now := s.clk.UptimeMs()
	if now < 1 {
		now = 1
	}
	st.AlertSent = true
	st.LastAlertMs = now
	st.MotionWakeNeedsAlert = false

	if !s.pending.cached && s.pending.fix.Valid && s.hist != nil {
		src := types.SourcePeriodic
		if first {
			src = types.SourceDisconnectEvent
		}
		s.hist.Add(types.HistoryEntry{Fix: s.pending.fix, Source: src})
	}
	s.log.Info("alert sent", "first", first, "valid_fix", s.pending.fix.Valid, "cached", s.pending.cached)
	s.pending = nil
	return Sent
}

// acquire gets a fresh fix, falling back to the cached one and finally to
// an empty fix (coordinate-less alert).
func (s *Scheduler) acquire(ctx context.Context) pendingFix {
	fix, err := s.modem.AcquireFix(ctx, s.fixTimeout)
	if err == nil && fix.Valid {
		if fix.TimestampMs == 0 {
			fix.TimestampMs = s.clk.UptimeMs()
		}
		if s.hist != nil {
			s.hist.SetLastFix(fix)
		}
		return pendingFix{fix: fix}
	}
	if err == nil {
		err = errcode.NoFix
	}
	s.log.Warn("fix unavailable", "err", err)
	if s.hist != nil {
		if cached, ok := s.hist.LastFix(); ok {
			return pendingFix{fix: cached, cached: true}
		}
	}
	return pendingFix{}
}

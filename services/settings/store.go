// Package settings is the Configuration Store: the persisted
// {phone number, alert interval, alerts-enabled} triple.
//
// The current value is swapped atomically so that link write callbacks can
// apply a patch without blocking, while the decision loop reads a
// consistent snapshot. Writing back to flash is deferred to Flush, which
// the loop calls once per iteration.
package settings

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"biketrack-go/errcode"
	"biketrack-go/storage/nvs"
	"biketrack-go/types"
	"biketrack-go/x/logx"
	"biketrack-go/x/mathx"
)

const (
	Namespace   = "bike-cfg"
	KeyPhone    = "phone"
	KeyInterval = "interval"
	KeyAlerts   = "alerts"
)

const (
	pendingWrite uint32 = 1 << iota
	pendingClear
)

type Store struct {
	nv  nvs.Store
	log logx.Logger

	mu      sync.Mutex // serialises writers; readers use cur
	cur     atomic.Pointer[types.DeviceConfig]
	pending atomic.Uint32
}

func New(nv nvs.Store, log logx.Logger) *Store {
	if log == nil {
		log = logx.Nop()
	}
	s := &Store{nv: nv, log: log}
	def := types.DefaultDeviceConfig()
	s.cur.Store(&def)
	return s
}

// Load reads the triple from flash. Missing or invalid stored values fall
// back to the default for that field.
func (s *Store) Load() types.DeviceConfig {
	cfg := types.DefaultDeviceConfig()
	if v, ok := s.nv.Get(Namespace, KeyPhone); ok && validPhone(v) {
		cfg.PhoneNumber = v
	}
	if v, ok := s.nv.Get(Namespace, KeyInterval); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && validInterval(n) {
			cfg.UpdateIntervalSec = uint32(n)
		}
	}
	if v, ok := s.nv.Get(Namespace, KeyAlerts); ok {
		cfg.AlertsEnabled = v == "1"
	}
	s.mu.Lock()
	s.cur.Store(&cfg)
	s.pending.Store(0)
	s.mu.Unlock()
	return cfg
}

// Current returns the latest applied configuration.
func (s *Store) Current() types.DeviceConfig { return *s.cur.Load() }

// ApplyWrite decodes and applies a Config characteristic body. It never
// blocks on flash and is safe to call from a transport callback.
func (s *Store) ApplyWrite(body []byte) (types.DeviceConfig, error) {
	p, decErr := DecodePatch(body)
	cfg, applyErr := s.Apply(p)
	return cfg, errors.Join(decErr, applyErr)
}

// Apply validates each present field independently; rejected fields keep
// their previous value. An empty phone number or Clear resets everything
// to defaults.
func (s *Store) Apply(p Patch) (types.DeviceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Clear || (p.Phone != nil && *p.Phone == "") {
		def := types.DefaultDeviceConfig()
		s.cur.Store(&def)
		s.pending.Store(pendingClear)
		s.log.Info("config cleared")
		return def, nil
	}
	if p.Empty() {
		return *s.cur.Load(), nil
	}

	next := *s.cur.Load()
	var errs []error
	changed := false

	if p.Phone != nil {
		if validPhone(*p.Phone) {
			next.PhoneNumber = *p.Phone
			changed = true
		} else {
			errs = append(errs, &errcode.E{C: errcode.InvalidParams, Op: "settings.apply", Msg: "phone_number"})
		}
	}
	if p.Interval != nil {
		if validInterval(*p.Interval) {
			next.UpdateIntervalSec = uint32(*p.Interval)
			changed = true
		} else {
			errs = append(errs, &errcode.E{C: errcode.OutOfRange, Op: "settings.apply", Msg: "update_interval " + strconv.FormatInt(*p.Interval, 10)})
		}
	}
	if p.Alerts != nil {
		next.AlertsEnabled = *p.Alerts
		changed = true
	}

	if changed {
		s.cur.Store(&next)
		s.pending.Store(s.pending.Load() | pendingWrite)
		s.log.Info("config updated",
			"phone_set", next.PhoneNumber != "",
			"interval", next.UpdateIntervalSec,
			"alerts", next.AlertsEnabled)
	}
	return next, errors.Join(errs...)
}

// Reset restores defaults (console "clearconfig" and the CLEAR write).
func (s *Store) Reset() types.DeviceConfig {
	cfg, _ := s.Apply(Patch{Clear: true})
	return cfg
}

// Dirty reports whether a change is waiting for Flush.
func (s *Store) Dirty() bool { return s.pending.Load() != 0 }

// Flush writes pending changes to flash. Flash I/O happens outside the
// writer lock. On failure the change stays pending for the next call.
func (s *Store) Flush() error {
	s.mu.Lock()
	p := s.pending.Swap(0)
	cfg := *s.cur.Load()
	s.mu.Unlock()
	if p == 0 {
		return nil
	}

	err := s.persist(p, cfg)
	if err != nil {
		s.mu.Lock()
		s.pending.Store(s.pending.Load() | p)
		s.mu.Unlock()
	}
	return err
}

func (s *Store) persist(p uint32, cfg types.DeviceConfig) error {
	if p&pendingClear != 0 {
		if err := s.nv.Clear(Namespace); err != nil {
			return errcode.Wrap(errcode.StorageFailed, "settings.flush", err)
		}
	}
	if p&pendingWrite == 0 {
		return nil
	}
	return nvs.PutAll(s.nv, Namespace, map[string]string{
		KeyPhone:    cfg.PhoneNumber,
		KeyInterval: strconv.FormatUint(uint64(cfg.UpdateIntervalSec), 10),
		KeyAlerts:   boolFlag(cfg.AlertsEnabled),
	})
}

func validInterval(n int64) bool {
	return mathx.Between(n, types.MinUpdateInterval, types.MaxUpdateInterval)
}

// validPhone accepts 1..19 characters: an optional leading '+', then digits.
func validPhone(s string) bool {
	if s == "" || len(s) > types.MaxPhoneLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '+' && i == 0 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != "+"
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Package ble is the wireless protocol surface: five characteristics
// (config, status, history, command, location) mapped onto the bus.
//
// Radio callbacks (OnConnect, OnDisconnect, OnWrite) never block. Config
// writes are applied to the settings store in place; everything else is
// handed to the tracker loop as a types.LinkEvent on link/event.
package ble

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"biketrack-go/bus"
	"biketrack-go/errcode"
	"biketrack-go/services/heartbeat"
	"biketrack-go/services/settings"
	"biketrack-go/types"
	"biketrack-go/x/logx"
)

type Characteristic uint8

const (
	CharConfig Characteristic = iota + 1
	CharStatus
	CharHistory
	CharCommand
	CharLocation
)

var charNames = [...]string{"", "config", "status", "history", "command", "location"}

func (c Characteristic) String() string {
	if int(c) < len(charNames) {
		return charNames[c]
	}
	return "unknown"
}

// ParseCharacteristic maps a name back to its characteristic.
func ParseCharacteristic(s string) (Characteristic, bool) {
	for i := 1; i < len(charNames); i++ {
		if charNames[i] == s {
			return Characteristic(i), true
		}
	}
	return 0, false
}

// Peripheral is the radio stack underneath.
type Peripheral interface {
	Advertise() error
	Notify(ch Characteristic, value []byte) error
}

const DefaultMTU = 23

var (
	topicStatus   = bus.T("tracker", "status")
	topicHistory  = bus.T("tracker", "history")
	topicLocation = bus.T("tracker", "location")
	topicLink     = bus.T("link", "event")
)

type Service struct {
	conn     *bus.Connection
	settings *settings.Store
	periph   Peripheral
	log      logx.Logger

	connected atomic.Bool
	mtu       atomic.Int32

	mu     sync.Mutex
	values map[Characteristic][]byte
}

func New(conn *bus.Connection, st *settings.Store, p Peripheral, log logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	s := &Service{
		conn:     conn,
		settings: st,
		periph:   p,
		log:      log,
		values:   make(map[Characteristic][]byte),
	}
	s.mtu.Store(DefaultMTU)
	return s
}

// -----------------------------------------------------------------------------
// tracker.Link
// -----------------------------------------------------------------------------

func (s *Service) Connected() bool { return s.connected.Load() }

func (s *Service) StartAdvertising() error {
	if s.connected.Load() {
		return nil
	}
	return s.periph.Advertise()
}

// MTU returns the negotiated ATT MTU.
func (s *Service) MTU() int { return int(s.mtu.Load()) }

// -----------------------------------------------------------------------------
// Radio callbacks
// -----------------------------------------------------------------------------

func (s *Service) OnConnect(mtu int) {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	s.mtu.Store(int32(mtu))
	s.connected.Store(true)
	s.log.Info("central connected", "mtu", mtu)
	s.event(types.LinkEvent{Kind: types.LinkConnected, MTU: mtu})
}

// OnDisconnect marks the link down and restarts advertising.
func (s *Service) OnDisconnect() {
	s.connected.Store(false)
	s.mtu.Store(DefaultMTU)
	s.log.Info("central disconnected")
	s.event(types.LinkEvent{Kind: types.LinkDisconnected})
	if err := s.periph.Advertise(); err != nil {
		s.log.Warn("advertise failed", "err", err)
	}
}

// OnWrite handles a characteristic write. Config bodies are applied
// immediately; valid fields survive even when others are rejected.
func (s *Service) OnWrite(ch Characteristic, body []byte) error {
	switch ch {
	case CharConfig:
		cfg, err := s.settings.ApplyWrite(body)
		if err != nil {
			s.log.Warn("config write", "err", err)
		}
		s.log.Info("config write applied", "interval", cfg.UpdateIntervalSec, "alerts", cfg.AlertsEnabled)
		s.event(types.LinkEvent{Kind: types.LinkConfigApplied})
		return err
	case CharCommand:
		s.event(types.LinkEvent{Kind: types.LinkCommand, Body: string(body)})
		return nil
	}
	return &errcode.E{C: errcode.Unsupported, Op: "ble.write", Msg: ch.String()}
}

// Read returns the last value of a readable characteristic.
func (s *Service) Read(ch Characteristic) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[ch]
}

func (s *Service) event(ev types.LinkEvent) {
	if ev.MTU == 0 {
		ev.MTU = s.MTU()
	}
	s.conn.Publish(s.conn.NewMessage(topicLink, ev, false))
}

// -----------------------------------------------------------------------------
// Notification loop
// -----------------------------------------------------------------------------

// Start runs the notification loop until ctx ends.
func (s *Service) Start(ctx context.Context) {
	statusSub := s.conn.Subscribe(topicStatus)
	historySub := s.conn.Subscribe(topicHistory)
	locationSub := s.conn.Subscribe(topicLocation)
	tickSub := s.conn.Subscribe(heartbeat.TopicTick)
	go func() {
		defer func() {
			s.conn.Unsubscribe(statusSub)
			s.conn.Unsubscribe(historySub)
			s.conn.Unsubscribe(locationSub)
			s.conn.Unsubscribe(tickSub)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-statusSub.Channel():
				s.update(CharStatus, m.Payload)
			case m := <-historySub.Channel():
				s.update(CharHistory, m.Payload)
			case m := <-locationSub.Channel():
				s.update(CharLocation, m.Payload)
			case <-tickSub.Channel():
				s.renotify(CharStatus)
			}
		}
	}()
}

// update stores the encoded value and notifies it while connected.
func (s *Service) update(ch Characteristic, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode", "char", ch.String(), "err", err)
		return
	}
	s.mu.Lock()
	s.values[ch] = b
	s.mu.Unlock()
	s.notify(ch, b)
}

func (s *Service) renotify(ch Characteristic) {
	if b := s.Read(ch); b != nil {
		s.notify(ch, b)
	}
}

func (s *Service) notify(ch Characteristic, b []byte) {
	if !s.connected.Load() {
		return
	}
	if err := s.periph.Notify(ch, b); err != nil {
		s.log.Warn("notify failed", "char", ch.String(), "err", err)
	}
}

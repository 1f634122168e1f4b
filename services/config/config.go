// Package config publishes the embedded per-board configuration as retained
// bus messages, one per top-level key, under config/<key>.
//
// The "tracker" and "heartbeat" keys are decoded into typed, range-checked
// payloads; any other key is published as its generic JSON value.
package config

import (
	"context"
	"encoding/json"
	"errors"

	"biketrack-go/bus"
	"biketrack-go/errcode"
	"biketrack-go/types"
	"biketrack-go/x/logx"
	"biketrack-go/x/mathx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for board ID

	KeyTracker   = "tracker"
	KeyHeartbeat = "heartbeat"
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Board is the decoded board document.
type Board struct {
	Tracker   types.TrackerParams
	Heartbeat types.HeartbeatConfig
	Extra     map[string]any
}

// Load resolves and decodes the embedded document for device.
func Load(device string) (Board, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return Board{}, &errcode.E{C: errcode.NotConfigured, Op: "config.load", Msg: "no embedded config for " + device}
	}
	return Decode(raw)
}

// Decode parses a board document. Missing sections get defaults; numeric
// fields outside their range are clamped.
func Decode(raw []byte) (Board, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Board{}, errcode.Wrap(errcode.InvalidPayload, "config.decode", err)
	}
	b := Board{
		Tracker:   types.DefaultTrackerParams(),
		Heartbeat: types.HeartbeatConfig{IntervalSec: DefaultHeartbeatSec},
	}
	for k, v := range top {
		switch k {
		case KeyTracker:
			var p types.TrackerParams
			if err := json.Unmarshal(v, &p); err != nil {
				return Board{}, errcode.Wrap(errcode.InvalidPayload, "config.tracker", err)
			}
			b.Tracker = ClampTracker(p)
		case KeyHeartbeat:
			var h types.HeartbeatConfig
			if err := json.Unmarshal(v, &h); err != nil {
				return Board{}, errcode.Wrap(errcode.InvalidPayload, "config.heartbeat", err)
			}
			b.Heartbeat = ClampHeartbeat(h)
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return Board{}, errcode.Wrap(errcode.InvalidPayload, "config."+k, err)
			}
			if b.Extra == nil {
				b.Extra = make(map[string]any)
			}
			b.Extra[k] = val
		}
	}
	return b, nil
}

const (
	DefaultHeartbeatSec = 2.0
	minHeartbeatSec     = 0.5
	maxHeartbeatSec     = 60.0
)

// ClampTracker fills zero fields from the defaults and clamps the rest.
func ClampTracker(p types.TrackerParams) types.TrackerParams {
	def := types.DefaultTrackerParams()
	p.QuietPeriodMs = clampOr(p.QuietPeriodMs, def.QuietPeriodMs, 1_000, 600_000)
	p.MotionSamples = clampOr(p.MotionSamples, def.MotionSamples, 1, 50)
	p.MotionThresholdG = clampOr(p.MotionThresholdG, def.MotionThresholdG, 0.01, 2)
	p.MotionSampleDelayMs = clampOr(p.MotionSampleDelayMs, def.MotionSampleDelayMs, 5, 1_000)
	p.FixTimeoutMs = clampOr(p.FixTimeoutMs, def.FixTimeoutMs, 1_000, 600_000)
	p.MonitorWindowMs = clampOr(p.MonitorWindowMs, def.MonitorWindowMs, 5_000, 600_000)
	p.RetryBackoffMs = clampOr(p.RetryBackoffMs, def.RetryBackoffMs, 10_000, 3_600_000)
	p.HistoryPushDelayMs = clampOr(p.HistoryPushDelayMs, def.HistoryPushDelayMs, 0, 60_000)
	p.LoopTickMs = clampOr(p.LoopTickMs, def.LoopTickMs, 10, 1_000)
	return p
}

func ClampHeartbeat(h types.HeartbeatConfig) types.HeartbeatConfig {
	h.IntervalSec = clampOr(h.IntervalSec, DefaultHeartbeatSec, minHeartbeatSec, maxHeartbeatSec)
	return h
}

func clampOr[T int | int64 | float32 | float64](v, def, lo, hi T) T {
	if v == 0 {
		return def
	}
	return mathx.Clamp(v, lo, hi)
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	log  logx.Logger
}

func NewConfigService(log logx.Logger) *ConfigService {
	if log == nil {
		log = logx.Nop()
	}
	return &ConfigService{Name: serviceName, log: log}
}

// publishConfig reads the board config and publishes it as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	b, err := Load(device)
	if err != nil {
		return err
	}

	conn.Publish(conn.NewMessage(bus.T(configPrefix, KeyTracker), b.Tracker, true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, KeyHeartbeat), b.Heartbeat, true))
	for k, v := range b.Extra {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			s.log.Error("publish failed", "err", err)
		}
	}()
}

// Topic returns the retained topic for a config key.
func Topic(key string) bus.Topic { return bus.T(configPrefix, key) }

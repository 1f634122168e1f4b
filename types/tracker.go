package types

import "strconv"

// ------------------------
// Device mode (presence fusion output)
// ------------------------

type Mode uint8

const (
	ModeReady        Mode = iota // link up, rider present
	ModeAway                     // link up, rider absent
	ModeDisconnected             // link down
)

func (m Mode) String() string {
	switch m {
	case ModeReady:
		return "READY"
	case ModeAway:
		return "AWAY"
	case ModeDisconnected:
		return "DISCONNECTED"
	}
	return "UNKNOWN"
}

// ------------------------
// User configuration
// ------------------------

const (
	MaxPhoneLen           = 19
	MinUpdateInterval     = 60
	MaxUpdateInterval     = 3600
	DefaultUpdateInterval = 600
)

// DeviceConfig is owned by the settings store and replaced atomically.
type DeviceConfig struct {
	PhoneNumber       string `json:"phone_number"`
	UpdateIntervalSec uint32 `json:"update_interval"`
	AlertsEnabled     bool   `json:"alert_enabled"`
}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{PhoneNumber: "", UpdateIntervalSec: DefaultUpdateInterval, AlertsEnabled: true}
}

// AlertsActive reports whether alerts may be sent at all.
func (c DeviceConfig) AlertsActive() bool { return c.AlertsEnabled && c.PhoneNumber != "" }

// IntervalMs is the alert cadence in milliseconds.
func (c DeviceConfig) IntervalMs() int64 { return int64(c.UpdateIntervalSec) * 1000 }

// ------------------------
// Ephemeral status
// ------------------------

// DeviceStatus is recomputed every loop iteration and never persisted.
type DeviceStatus struct {
	LinkConnected bool
	UserPresent   bool
	Mode          Mode
	LastFixMs     int64
}

// ------------------------
// GPS
// ------------------------

// Fix is one coordinate reading; lat/lon are decimal-degree strings as
// reported by the receiver.
type Fix struct {
	Latitude    string `json:"lat"`
	Longitude   string `json:"lon"`
	Valid       bool   `json:"valid"`
	TimestampMs int64  `json:"time"`
}

// Degrees parses the coordinates. ok is false for an invalid or unparsable fix.
func (f Fix) Degrees() (lat, lon float64, ok bool) {
	if !f.Valid {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(f.Latitude, 64)
	lon, err2 := strconv.ParseFloat(f.Longitude, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

type FixSource uint8

const (
	SourcePeriodic        FixSource = 1
	SourceDisconnectEvent FixSource = 2
)

// HistoryEntry is a logged fix tagged with why it was taken.
type HistoryEntry struct {
	Fix
	Source FixSource `json:"src"`
}

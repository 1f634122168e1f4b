package sim

import (
	"biketrack-go/errcode"
	"biketrack-go/x/strx"

	"github.com/BurntSushi/toml"
)

// Profile is the bench description loaded from TOML.
//
//	state_dir = "./bench"
//	log_level = "debug"
//	board = "host"
//	time_scale = 10.0
//
//	[gnss]
//	lat = 51.5074
//	lon = -0.1278
//	available = true
//	external = false   # NMEA receiver instead of the modem's GNSS
//
//	[modem]
//	network = true
//	fail_sms = false
//
//	[link]
//	connected = false
//	mtu = 185
//
//	[rider]
//	present = false
//
//	[tracker]          # overrides of the board config
//	quiet_period_ms = 5000
type Profile struct {
	StateDir  string  `toml:"state_dir"`
	LogLevel  string  `toml:"log_level"`
	LogFormat string  `toml:"log_format"`
	Board     string  `toml:"board"`
	TimeScale float64 `toml:"time_scale"`

	GNSS struct {
		Lat       float64 `toml:"lat"`
		Lon       float64 `toml:"lon"`
		Available bool    `toml:"available"`
		External  bool    `toml:"external"`
	} `toml:"gnss"`

	Modem struct {
		Network bool `toml:"network"`
		FailSMS bool `toml:"fail_sms"`
	} `toml:"modem"`

	Link struct {
		Connected bool `toml:"connected"`
		MTU       int  `toml:"mtu"`
	} `toml:"link"`

	Rider struct {
		Present bool `toml:"present"`
	} `toml:"rider"`

	Tracker TrackerOverrides `toml:"tracker"`
}

// TrackerOverrides replace board tunables when non-zero.
type TrackerOverrides struct {
	QuietPeriodMs   int64 `toml:"quiet_period_ms"`
	FixTimeoutMs    int64 `toml:"fix_timeout_ms"`
	MonitorWindowMs int64 `toml:"monitor_window_ms"`
	RetryBackoffMs  int64 `toml:"retry_backoff_ms"`
}

func DefaultProfile() Profile {
	var p Profile
	p.StateDir = "./bench"
	p.LogLevel = "info"
	p.LogFormat = "console"
	p.Board = "host"
	p.TimeScale = 1
	p.GNSS.Lat, p.GNSS.Lon, p.GNSS.Available = 51.5074, -0.1278, true
	p.Modem.Network = true
	p.Link.MTU = 185
	return p
}

// LoadProfile decodes path over the defaults. Unknown keys are an error.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Profile{}, errcode.Wrap(errcode.InvalidPayload, "sim.profile", err)
	}
	if und := md.Undecoded(); len(und) > 0 {
		return Profile{}, &errcode.E{C: errcode.InvalidParams, Op: "sim.profile", Msg: "unknown key " + und[0].String()}
	}
	if p.TimeScale <= 0 {
		p.TimeScale = 1
	}
	p.Board = strx.Coalesce(p.Board, "host")
	p.StateDir = strx.Coalesce(p.StateDir, ".")
	return p, nil
}

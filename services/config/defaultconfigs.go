package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

const cfgPico = `{
  "tracker": {
      "quiet_period_ms": 10000,
      "motion_samples": 5,
      "motion_threshold_g": 0.15,
      "motion_sample_delay_ms": 50,
      "fix_timeout_ms": 120000,
      "monitor_window_ms": 60000,
      "retry_backoff_ms": 60000,
      "history_push_delay_ms": 2000
  },
  "heartbeat": {
      "interval": 2
  }
}`

// The bench board shortens the slow paths.
const cfgHost = `{
  "tracker": {
      "quiet_period_ms": 5000,
      "fix_timeout_ms": 5000,
      "monitor_window_ms": 15000,
      "retry_backoff_ms": 20000
  },
  "heartbeat": {
      "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}

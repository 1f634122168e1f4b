package types

// Board configuration supplied on topics "config/tracker" and
// "config/heartbeat". Durations are milliseconds; zero means default.

type TrackerParams struct {
	QuietPeriodMs       int64   `json:"quiet_period_ms"`
	MotionSamples       int     `json:"motion_samples"`
	MotionThresholdG    float32 `json:"motion_threshold_g"`
	MotionSampleDelayMs int64   `json:"motion_sample_delay_ms"`
	FixTimeoutMs        int64   `json:"fix_timeout_ms"`
	MonitorWindowMs     int64   `json:"monitor_window_ms"`
	RetryBackoffMs      int64   `json:"retry_backoff_ms"`
	HistoryPushDelayMs  int64   `json:"history_push_delay_ms"`
	LoopTickMs          int64   `json:"loop_tick_ms"`
}

func DefaultTrackerParams() TrackerParams {
	return TrackerParams{
		QuietPeriodMs:       10_000,
		MotionSamples:       5,
		MotionThresholdG:    0.15,
		MotionSampleDelayMs: 50,
		FixTimeoutMs:        120_000,
		MonitorWindowMs:     60_000,
		RetryBackoffMs:      60_000,
		HistoryPushDelayMs:  2_000,
		LoopTickMs:          100,
	}
}

type HeartbeatConfig struct {
	IntervalSec float64 `json:"interval"`
}

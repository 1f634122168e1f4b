package timex

import "time"

// Scaled is a System clock running factor times faster. The bench uses it
// to compress quiet periods and sleep intervals.
type Scaled struct {
	start  time.Time
	factor float64
}

func NewScaled(factor float64) *Scaled {
	if factor <= 0 {
		factor = 1
	}
	return &Scaled{start: time.Now(), factor: factor}
}

func (s *Scaled) UptimeMs() int64 {
	return int64(float64(time.Since(s.start).Milliseconds()) * s.factor)
}

func (s *Scaled) Sleep(d time.Duration) { time.Sleep(s.Real(d)) }

// Real converts a scaled duration to wall time.
func (s *Scaled) Real(d time.Duration) time.Duration {
	return time.Duration(float64(d) / s.factor)
}

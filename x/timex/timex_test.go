package timex

import (
	"testing"
	"time"
)

func TestFakeAdvanceAndSleep(t *testing.T) {
	f := NewFake(1000)
	f.Advance(250 * time.Millisecond)
	f.Sleep(2 * time.Second)
	if got := f.UptimeMs(); got != 3250 {
		t.Fatalf("UptimeMs() = %d, want 3250", got)
	}
	f.Set(5)
	if got := f.UptimeMs(); got != 5 {
		t.Fatalf("after Set, UptimeMs() = %d", got)
	}
}

func TestSystemUptimeMonotonic(t *testing.T) {
	s := NewSystem()
	a := s.UptimeMs()
	s.Sleep(2 * time.Millisecond)
	if b := s.UptimeMs(); b < a {
		t.Fatalf("uptime went backwards: %d -> %d", a, b)
	}
}

func TestScaledCompressesTime(t *testing.T) {
	s := NewScaled(100)
	if got := s.Real(10 * time.Second); got != 100*time.Millisecond {
		t.Fatalf("Real(10s) = %v", got)
	}
	s.Sleep(500 * time.Millisecond)
	if got := s.UptimeMs(); got < 500 {
		t.Fatalf("UptimeMs() = %d after scaled 500ms sleep", got)
	}
	if NewScaled(0).Real(time.Second) != time.Second {
		t.Fatal("non-positive factor not treated as 1")
	}
}

package logx

import "testing"

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"loud":  LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestNewAndNopDoNotPanic(t *testing.T) {
	l := New("test")
	l.Debug("debug", "k", 1)
	l.Info("info", "ok", true)
	l.Warn("warn")
	l.Error("error", "err", nil)
	Nop().Info("discarded", "k", "v")
}

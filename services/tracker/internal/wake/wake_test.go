package wake

import (
	"errors"
	"testing"

	"biketrack-go/errcode"
)

func TestEncodeDecode(t *testing.T) {
	in := State{
		AlertSent:             true,
		LastAlertMs:           123456789,
		FirstDisconnectLogged: true,
		HasValidConfigAtBoot:  true,
	}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestDecode_RejectsBlankAndCorrupt(t *testing.T) {
	var blank [RecordSize]byte
	if _, err := Decode(blank); !errors.Is(err, errcode.CorruptState) {
		t.Fatalf("blank region: got %v", err)
	}
	m := NewMemStore()
	_ = m.Save(State{AlertSent: true, LastAlertMs: 99})
	m.Corrupt()
	if _, err := m.Load(); !errors.Is(err, errcode.CorruptState) {
		t.Fatalf("corrupt record: got %v", err)
	}
}

func TestRestore_ColdBootResetsEverything(t *testing.T) {
	for _, reason := range []BootReason{BootPowerOn, BootExternalReset, BootUnknown} {
		m := NewMemStore()
		_ = m.Save(State{AlertSent: true, LastAlertMs: 5000, FirstDisconnectLogged: true, MotionWakeNeedsAlert: true})
		s, err := Restore(m, reason)
		if err != nil {
			t.Fatalf("%v: %v", reason, err)
		}
		if s != (State{}) {
			t.Fatalf("%v: state not reset: %+v", reason, s)
		}
		if stored, _ := m.Load(); stored != (State{}) {
			t.Fatalf("%v: stale record left behind: %+v", reason, stored)
		}
	}
}

func TestRestore_TimerWakeTrustsRecord(t *testing.T) {
	m := NewMemStore()
	_ = m.Save(State{AlertSent: true, LastAlertMs: 600000, FirstDisconnectLogged: true})
	s, err := Restore(m, BootTimer)
	if err != nil {
		t.Fatal(err)
	}
	if !s.AlertSent || !s.FirstDisconnectLogged {
		t.Fatalf("retained flags lost: %+v", s)
	}
	if !s.WokeFromTimer || s.LastAlertMs != 0 || !s.TimerWakeDue() {
		t.Fatalf("timer wake not marked: %+v", s)
	}
}

func TestRestore_MotionWakeHandledAsTimerWake(t *testing.T) {
	m := NewMemStore()
	_ = m.Save(State{AlertSent: true, LastAlertMs: 1})
	s, err := Restore(m, BootMotion)
	if err != nil {
		t.Fatal(err)
	}
	if !s.WokeFromTimer || s.LastAlertMs != 0 || !s.AlertSent {
		t.Fatalf("got %+v", s)
	}
}

func TestRestore_SleepWakeWithoutRecord(t *testing.T) {
	s, err := Restore(NewMemStore(), BootTimer)
	if err == nil {
		t.Fatal("expected corrupt-state error")
	}
	if s.AlertSent || !s.WokeFromTimer {
		t.Fatalf("got %+v", s)
	}
}

func TestResetCycle(t *testing.T) {
	s := State{AlertSent: true, LastAlertMs: 10, MotionWakeNeedsAlert: true, FirstDisconnectLogged: true, WokeFromTimer: true}
	s.ResetCycle()
	if s.AlertSent || s.LastAlertMs != 0 || s.MotionWakeNeedsAlert {
		t.Fatalf("cycle flags not cleared: %+v", s)
	}
	if !s.FirstDisconnectLogged || !s.WokeFromTimer {
		t.Fatal("ResetCycle touched non-cycle flags")
	}
}

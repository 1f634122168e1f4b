package types

import "testing"

func TestModeString(t *testing.T) {
	for m, want := range map[Mode]string{
		ModeReady:        "READY",
		ModeAway:         "AWAY",
		ModeDisconnected: "DISCONNECTED",
		Mode(9):          "UNKNOWN",
	} {
		if got := m.String(); got != want {
			t.Fatalf("Mode(%d).String() = %q, want %q", m, got, want)
		}
	}
}

func TestFixDegrees(t *testing.T) {
	lat, lon, ok := Fix{Latitude: "51.507351", Longitude: "-0.127758", Valid: true}.Degrees()
	if !ok || lat != 51.507351 || lon != -0.127758 {
		t.Fatalf("Degrees() = %v %v %v", lat, lon, ok)
	}
	if _, _, ok := (Fix{Latitude: "51.5", Longitude: "x", Valid: true}).Degrees(); ok {
		t.Fatal("unparsable longitude should not be ok")
	}
	if _, _, ok := (Fix{Latitude: "1", Longitude: "2"}).Degrees(); ok {
		t.Fatal("invalid fix should not be ok")
	}
}

func TestDefaultDeviceConfig(t *testing.T) {
	c := DefaultDeviceConfig()
	if c.PhoneNumber != "" || c.UpdateIntervalSec != 600 || !c.AlertsEnabled {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.AlertsActive() {
		t.Fatal("alerts must be inactive without a phone number")
	}
	if c.IntervalMs() != 600_000 {
		t.Fatalf("IntervalMs() = %d", c.IntervalMs())
	}
}

package alert

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"

	"biketrack-go/types"
)

const earthRadiusM = 6371008.8

// Content is what an alert reports.
type Content struct {
	Fix         types.Fix
	Cached      bool // Fix is the fallback from an earlier acquisition
	Prev        types.Fix
	UserPresent bool
	IntervalSec uint32
}

// Compose renders the alert as SMS parts. With coordinates the first part
// is a bare geo URI so handsets open a map; the second carries the detail.
func Compose(c Content) []string {
	var b strings.Builder
	if _, _, ok := c.Fix.Degrees(); !ok {
		b.WriteString("Bike alert: movement while unattended\n")
		b.WriteString("Location unavailable (no GPS fix)\n")
		writeStatus(&b, c)
		return []string{b.String()}
	}

	geo := "geo:" + c.Fix.Latitude + "," + c.Fix.Longitude

	b.WriteString("If map did not load, copy coordinates to your map app\n")
	b.WriteString("Location: ")
	b.WriteString(c.Fix.Latitude)
	b.WriteByte(',')
	b.WriteString(c.Fix.Longitude)
	if c.Cached {
		b.WriteString(" (last known)")
	}
	b.WriteByte('\n')
	if d, ok := DistanceM(c.Prev, c.Fix); ok {
		b.WriteString("Moved: ")
		b.WriteString(strconv.FormatInt(int64(math.Round(d)), 10))
		b.WriteString(" m since last alert\n")
	}
	writeStatus(&b, c)
	return []string{geo, b.String()}
}

func writeStatus(b *strings.Builder, c Content) {
	b.WriteString("\nDevice Status\nUser: ")
	if c.UserPresent {
		b.WriteString("Present")
	} else {
		b.WriteString("Away")
	}
	b.WriteString("\nSMS Interval: ")
	b.WriteString(strconv.FormatUint(uint64(c.IntervalSec), 10))
	b.WriteString(" sec")
}

// TestMessage is the console "sms" body.
func TestMessage(uptimeMs int64) string {
	return "Bike Tracker Test SMS\nSystem operational\nTime: " +
		strconv.FormatInt(uptimeMs/1000, 10) + " seconds since boot"
}

// DistanceM is the great-circle distance between two valid fixes.
func DistanceM(a, b types.Fix) (float64, bool) {
	alat, alon, ok := a.Degrees()
	if !ok {
		return 0, false
	}
	blat, blon, ok := b.Degrees()
	if !ok {
		return 0, false
	}
	ang := s2.LatLngFromDegrees(alat, alon).Distance(s2.LatLngFromDegrees(blat, blon))
	return ang.Radians() * earthRadiusM, true
}

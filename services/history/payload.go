package history

import (
	"strconv"

	"biketrack-go/types"
	"biketrack-go/x/mathx"
)

// Page size bounds for paged fetches over small MTUs.
const (
	perPointBytes   = 64 // worst-case encoded HistoryPoint
	payloadOverhead = 48 // {"history":[],"count":50,"page":9,"pages":10}
	attOverhead     = 3
	MaxPageSize     = 10
)

// Payload renders the newest maxPoints entries (all when maxPoints <= 0).
func (l *Log) Payload(maxPoints int) types.HistoryPayload {
	entries := l.Entries()
	if maxPoints > 0 && len(entries) > maxPoints {
		entries = entries[len(entries)-maxPoints:]
	}
	return types.HistoryPayload{History: points(entries), Count: len(entries)}
}

// Page renders page n (zero-based, oldest first) of size pageSize.
// An out-of-range page yields an empty history with the page count set.
func (l *Log) Page(n, pageSize int) types.HistoryPayload {
	if pageSize <= 0 {
		pageSize = 1
	}
	entries := l.Entries()
	pages := int(mathx.CeilDiv(uint(len(entries)), uint(pageSize)))
	out := types.HistoryPayload{Count: len(entries), Page: &n, Pages: &pages}
	if n < 0 || n >= pages {
		out.History = []types.HistoryPoint{}
		return out
	}
	lo := n * pageSize
	hi := mathx.Min(lo+pageSize, len(entries))
	out.History = points(entries[lo:hi])
	return out
}

// PageSizeForMTU derives how many points fit in one notification.
func PageSizeForMTU(mtu int) int {
	usable := mtu - attOverhead - payloadOverhead
	return mathx.Clamp(usable/perPointBytes, 1, MaxPageSize)
}

func points(entries []types.HistoryEntry) []types.HistoryPoint {
	out := make([]types.HistoryPoint, 0, len(entries))
	for _, e := range entries {
		lat, lon, ok := e.Degrees()
		if !ok {
			continue
		}
		out = append(out, types.HistoryPoint{
			Lat:  round6(lat),
			Lon:  round6(lon),
			Time: e.TimestampMs,
			Src:  uint8(e.Source),
		})
	}
	return out
}

func round6(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 6, 64), 64)
	return f
}

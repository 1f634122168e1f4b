package history

import (
	"encoding/json"
	"strconv"
	"testing"

	"biketrack-go/storage/nvs"
	"biketrack-go/types"
)

func entry(i int, src types.FixSource) types.HistoryEntry {
	return types.HistoryEntry{
		Fix: types.Fix{
			Latitude:    "51." + strconv.Itoa(100000+i),
			Longitude:   "-0.123456",
			Valid:       true,
			TimestampMs: int64(i) * 1000,
		},
		Source: src,
	}
}

func TestAdd_EvictsOldestWhenFull(t *testing.T) {
	l := New(nil, nil)
	for i := 1; i <= Capacity+1; i++ {
		l.Add(entry(i, types.SourcePeriodic))
	}
	if l.Len() != Capacity {
		t.Fatalf("len: got %d want %d", l.Len(), Capacity)
	}
	es := l.Entries()
	if es[0].TimestampMs != 2000 {
		t.Fatalf("oldest: got %d want 2000 (entry 1 evicted)", es[0].TimestampMs)
	}
	if es[len(es)-1].TimestampMs != int64(Capacity+1)*1000 {
		t.Fatalf("newest: got %d", es[len(es)-1].TimestampMs)
	}
	for i := 1; i < len(es); i++ {
		if es[i].TimestampMs <= es[i-1].TimestampMs {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}

func TestClear_EmptiesRingButKeepsCachedFix(t *testing.T) {
	mem := nvs.NewMem()
	l := New(mem, nil)
	l.Add(entry(1, types.SourceDisconnectEvent))
	l.SetLastFix(entry(1, 0).Fix)

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("len after clear: %d", l.Len())
	}
	if mem.Len(NamespaceLog) != 0 {
		t.Fatal("log namespace not cleared")
	}
	if _, ok := l.LastFix(); !ok {
		t.Fatal("cached fix dropped by Clear")
	}
}

func TestSetLastFix_IgnoresInvalid(t *testing.T) {
	l := New(nil, nil)
	l.SetLastFix(types.Fix{Latitude: "1", Longitude: "2"})
	if _, ok := l.LastFix(); ok {
		t.Fatal("invalid fix was cached")
	}
}

func TestRestore_RoundTripsThroughStore(t *testing.T) {
	mem := nvs.NewMem()
	l := New(mem, nil)
	for i := 1; i <= 3; i++ {
		l.Add(entry(i, types.FixSource(1+i%2)))
	}
	l.SetLastFix(entry(3, 0).Fix)

	r := New(mem, nil)
	if err := r.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("len: got %d", r.Len())
	}
	got := r.Entries()
	want := l.Entries()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	if f, ok := r.LastFix(); !ok || f.TimestampMs != 3000 {
		t.Fatalf("last fix: %+v ok=%v", f, ok)
	}
}

func TestRestore_CorruptRecord(t *testing.T) {
	mem := nvs.NewMem()
	_ = mem.Put(NamespaceLog, keyRing, "{not json")
	if err := New(mem, nil).Restore(); err == nil {
		t.Fatal("expected error for corrupt ring")
	}
}

func TestAdd_SurvivesStorageFailure(t *testing.T) {
	mem := nvs.NewMem()
	mem.FailPuts = true
	l := New(mem, nil)
	l.Add(entry(1, types.SourcePeriodic))
	if l.Len() != 1 {
		t.Fatal("in-RAM entry lost on flash failure")
	}
}

func TestPayload_SerialisesPoints(t *testing.T) {
	l := New(nil, nil)
	l.Add(entry(1, types.SourceDisconnectEvent))
	l.Add(entry(2, types.SourcePeriodic))

	raw, err := json.Marshal(l.Payload(0))
	if err != nil {
		t.Fatal(err)
	}
	var back struct {
		History []struct {
			Lat  float64 `json:"lat"`
			Lon  float64 `json:"lon"`
			Time int64   `json:"time"`
			Src  uint8   `json:"src"`
		} `json:"history"`
		Count int  `json:"count"`
		Page  *int `json:"page"`
	}
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Count != 2 || len(back.History) != 2 {
		t.Fatalf("count: %+v", back)
	}
	if back.Page != nil {
		t.Fatal("page set on an unpaged payload")
	}
	if back.History[0].Src != 2 || back.History[0].Time != 1000 {
		t.Fatalf("first point: %+v", back.History[0])
	}
	if back.History[0].Lat != 51.100001 || back.History[0].Lon != -0.123456 {
		t.Fatalf("coords: %+v", back.History[0])
	}
}

func TestPayload_LimitsToNewest(t *testing.T) {
	l := New(nil, nil)
	for i := 1; i <= 5; i++ {
		l.Add(entry(i, types.SourcePeriodic))
	}
	p := l.Payload(2)
	if p.Count != 2 || p.History[0].Time != 4000 {
		t.Fatalf("got %+v", p)
	}
}

func TestPage(t *testing.T) {
	l := New(nil, nil)
	for i := 1; i <= 7; i++ {
		l.Add(entry(i, types.SourcePeriodic))
	}
	cases := []struct {
		page, size int
		wantLen    int
		wantFirst  int64
		wantPages  int
	}{
		{0, 3, 3, 1000, 3},
		{1, 3, 3, 4000, 3},
		{2, 3, 1, 7000, 3},
		{3, 3, 0, 0, 3},
		{-1, 3, 0, 0, 3},
		{0, 10, 7, 1000, 1},
	}
	for _, c := range cases {
		p := l.Page(c.page, c.size)
		if len(p.History) != c.wantLen || *p.Pages != c.wantPages || p.Count != 7 {
			t.Fatalf("page %d/%d: got len=%d pages=%d count=%d", c.page, c.size, len(p.History), *p.Pages, p.Count)
		}
		if c.wantLen > 0 && p.History[0].Time != c.wantFirst {
			t.Fatalf("page %d first: got %d want %d", c.page, p.History[0].Time, c.wantFirst)
		}
		if *p.Page != c.page {
			t.Fatalf("page echo: %d", *p.Page)
		}
	}
}

func TestPageSizeForMTU(t *testing.T) {
	cases := map[int]int{23: 1, 185: 2, 247: 3, 517: 7, 2048: MaxPageSize}
	for mtu, want := range cases {
		if got := PageSizeForMTU(mtu); got != want {
			t.Errorf("mtu %d: got %d want %d", mtu, got, want)
		}
	}
}

func TestLatest(t *testing.T) {
	l := New(nil, nil)
	if _, ok := l.Latest(); ok {
		t.Fatal("latest on empty log")
	}
	for i := 1; i <= Capacity+3; i++ {
		l.Add(entry(i, types.SourcePeriodic))
	}
	e, ok := l.Latest()
	if !ok || e.TimestampMs != int64(Capacity+3)*1000 {
		t.Fatalf("latest: %+v", e)
	}
}

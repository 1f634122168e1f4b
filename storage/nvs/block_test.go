package nvs

import (
	"errors"
	"testing"

	"biketrack-go/errcode"
)

// fakeFlash behaves like NOR flash: erase sets 0xFF, writes can only clear
// bits.
type fakeFlash struct {
	mem       []byte
	erase     int64
	failWrite bool
	tearAfter int // >0: write only this many bytes, then fail
}

func newFakeFlash(blocks int) *fakeFlash {
	f := &fakeFlash{mem: make([]byte, int64(blocks)*4096), erase: 4096}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	return f
}

func (f *fakeFlash) ReadAt(p []byte, off int64) (int, error) { return copy(p, f.mem[off:]), nil }
func (f *fakeFlash) Size() int64                             { return int64(len(f.mem)) }
func (f *fakeFlash) WriteBlockSize() int64                   { return 256 }
func (f *fakeFlash) EraseBlockSize() int64                   { return f.erase }

func (f *fakeFlash) WriteAt(p []byte, off int64) (int, error) {
	if f.failWrite {
		return 0, errors.New("flash: program failed")
	}
	if len(p)%256 != 0 {
		return 0, errors.New("flash: unaligned write")
	}
	n := len(p)
	if f.tearAfter > 0 && f.tearAfter < n {
		n = f.tearAfter
	}
	for i := 0; i < n; i++ {
		f.mem[off+int64(i)] &= p[i]
	}
	if n < len(p) {
		return n, errors.New("flash: power lost")
	}
	return n, nil
}

func (f *fakeFlash) EraseBlocks(start, length int64) error {
	for i := start * f.erase; i < (start+length)*f.erase; i++ {
		f.mem[i] = 0xFF
	}
	return nil
}

func TestBlock_RoundTripAcrossRemount(t *testing.T) {
	dev := newFakeFlash(4)
	b, err := OpenBlock(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Get("bike-cfg", "phone"); ok {
		t.Fatal("blank flash has data")
	}
	for i, v := range []string{"+15550100", "+15550101", "+15550102"} {
		if err := b.Put("bike-cfg", "phone", v); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := b.Put("gps-log", "ring", "[]"); err != nil {
		t.Fatal(err)
	}

	b2, err := OpenBlock(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := b2.Get("bike-cfg", "phone"); v != "+15550102" {
		t.Fatalf("phone = %q after remount", v)
	}
	if err := b2.Clear("bike-cfg"); err != nil {
		t.Fatal(err)
	}
	b3, _ := OpenBlock(dev, 1)
	if _, ok := b3.Get("bike-cfg", "phone"); ok {
		t.Fatal("cleared namespace survived remount")
	}
	if v, ok := b3.Get("gps-log", "ring"); !ok || v != "[]" {
		t.Fatal("other namespace lost")
	}
}

func TestBlock_TornWriteKeepsPreviousImage(t *testing.T) {
	dev := newFakeFlash(4)
	b, _ := OpenBlock(dev, 1)
	if err := b.Put("bike-cfg", "interval", "600"); err != nil {
		t.Fatal(err)
	}
	dev.tearAfter = 20
	if err := b.Put("bike-cfg", "interval", "900"); !errors.Is(err, errcode.StorageFailed) {
		t.Fatalf("err = %v, want storage_failed", err)
	}
	if v, _ := b.Get("bike-cfg", "interval"); v != "600" {
		t.Fatalf("in-memory value %q not rolled back", v)
	}
	dev.tearAfter = 0
	b2, _ := OpenBlock(dev, 1)
	if v, _ := b2.Get("bike-cfg", "interval"); v != "600" {
		t.Fatalf("remount value %q, want previous image", v)
	}
}

func TestBlock_Limits(t *testing.T) {
	if _, err := OpenBlock(newFakeFlash(1), 1); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("small device err = %v", err)
	}
	b, _ := OpenBlock(newFakeFlash(2), 1)
	big := make([]byte, 5000)
	for i := range big {
		big[i] = 'x'
	}
	if err := b.Put("gps-log", "ring", string(big)); !errors.Is(err, errcode.StorageFailed) {
		t.Fatalf("oversized image err = %v", err)
	}
}

package platform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"biketrack-go/errcode"
	"biketrack-go/services/tracker"
)

type fakeTxer struct {
	mu    sync.Mutex
	calls int
	inTx  int
	maxIn int
	delay time.Duration
	err   error
}

func (f *fakeTxer) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	f.calls++
	f.inTx++
	if f.inTx > f.maxIn {
		f.maxIn = f.inTx
	}
	f.mu.Unlock()
	time.Sleep(f.delay)
	for i := range r {
		r[i] = byte(addr)
	}
	f.mu.Lock()
	f.inTx--
	f.mu.Unlock()
	return f.err
}

func TestI2COwnerSerialises(t *testing.T) {
	hw := &fakeTxer{delay: time.Millisecond}
	o := NewI2COwner(hw)
	t.Cleanup(o.Stop)
	bus := o.Bus(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(addr uint16) {
			defer wg.Done()
			r := make([]byte, 2)
			if err := bus.Tx(addr, []byte{0x0F}, r); err != nil {
				t.Errorf("Tx: %v", err)
			}
			if r[0] != byte(addr) {
				t.Errorf("read %x for addr %x", r[0], addr)
			}
		}(uint16(0x40 + i))
	}
	wg.Wait()
	if hw.calls != 8 || hw.maxIn != 1 {
		t.Fatalf("calls=%d maxConcurrent=%d", hw.calls, hw.maxIn)
	}
}

func TestI2COwnerErrorsAndTimeout(t *testing.T) {
	hw := &fakeTxer{err: errors.New("nack")}
	o := NewI2COwner(hw)
	t.Cleanup(o.Stop)
	if err := o.Bus(0).Tx(0x6A, nil, nil); err == nil || err.Error() != "nack" {
		t.Fatalf("err = %v", err)
	}

	slow := &fakeTxer{delay: 100 * time.Millisecond}
	o2 := NewI2COwner(slow)
	t.Cleanup(o2.Stop)
	if err := o2.Bus(10*time.Millisecond).Tx(0x6A, nil, nil); !errors.Is(err, errcode.Timeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

type mapScratch map[int]uint32

func (m mapScratch) Load(i int) uint32     { return m[i] }
func (m mapScratch) Store(i int, v uint32) { m[i] = v }

func TestScratchStoreRoundTrip(t *testing.T) {
	regs := mapScratch{}
	s := NewScratchStore(regs, 2)

	if _, err := s.Load(); !errors.Is(err, errcode.CorruptState) {
		t.Fatalf("empty scratch err = %v", err)
	}
	want := tracker.WakeState{AlertSent: true, LastAlertMs: 123456, MotionWakeNeedsAlert: true}
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}
	if len(regs) != 4 || regs[0] != 0 || regs[1] != 0 {
		t.Fatalf("wrote words %v, want 2..5", regs)
	}
	got, err := s.Load()
	if err != nil || got != want {
		t.Fatalf("Load = %+v, %v", got, err)
	}
}

func TestClassifyBoot(t *testing.T) {
	cases := []struct {
		wd     bool
		marker uint32
		want   tracker.BootReason
	}{
		{false, MarkerTimer, tracker.BootPowerOn},
		{true, MarkerNone, tracker.BootExternalReset},
		{true, MarkerTimer, tracker.BootTimer},
		{true, MarkerMotion, tracker.BootMotion},
		{true, 0xDEADBEEF, tracker.BootTimer},
	}
	for _, c := range cases {
		if got := ClassifyBoot(c.wd, c.marker); got != c.want {
			t.Errorf("ClassifyBoot(%v, %#x) = %v, want %v", c.wd, c.marker, got, c.want)
		}
	}
}

func TestChanSleeper(t *testing.T) {
	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	s := ChanSleeper{}
	if err := s.LightSleep(context.Background(), wake); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.LightSleep(ctx, wake); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	parked := false
	if err := (ChanSleeper{Park: func() error { parked = true; return nil }}).ParkPins(); err != nil || !parked {
		t.Fatal("park hook not called")
	}
}

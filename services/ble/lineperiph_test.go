package ble

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"biketrack-go/types"
)

// pipePort feeds scripted input and records output.
type pipePort struct {
	in  chan []byte
	mu  sync.Mutex
	out strings.Builder
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *pipePort) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case chunk := <-p.in:
		return copy(b, chunk), nil
	}
}

func (p *pipePort) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func TestLinePeripheralDispatch(t *testing.T) {
	r := newRig(t)
	port := &pipePort{in: make(chan []byte, 8)}
	lp := NewLinePeripheral(port, nil)
	r.svc.periph = lp

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lp.Serve(ctx, r.svc) }()

	// Split across reads to exercise line assembly.
	port.in <- []byte("C 64\r\nW com")
	port.in <- []byte("mand SYNC\n")
	port.in <- []byte("W config {\"p\":\"+15551234\",\"i\":120,\"a\":1}\nD\n")

	want := []types.LinkEventKind{types.LinkConnected, types.LinkCommand, types.LinkConfigApplied, types.LinkDisconnected}
	for i, k := range want {
		ev := r.nextEvent(t)
		if ev.Kind != k {
			t.Fatalf("event %d = %+v, want kind %d", i, ev, k)
		}
		if k == types.LinkCommand && ev.Body != "SYNC" {
			t.Fatalf("command body %q", ev.Body)
		}
		if k == types.LinkConnected && ev.MTU != 64 {
			t.Fatalf("mtu %d", ev.MTU)
		}
	}
	if cfg := r.st.Current(); cfg.PhoneNumber != "+15551234" || cfg.UpdateIntervalSec != 120 {
		t.Fatalf("cfg = %+v", cfg)
	}
	eventually(t, func() bool { return strings.Contains(port.output(), "A\n") })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestLinePeripheralNotifyFormat(t *testing.T) {
	port := &pipePort{in: make(chan []byte)}
	lp := NewLinePeripheral(port, nil)
	if err := lp.Notify(CharLocation, []byte(`{"valid":false}`)); err != nil {
		t.Fatal(err)
	}
	if got := port.output(); got != "N location {\"valid\":false}\n" {
		t.Fatalf("output %q", got)
	}
}

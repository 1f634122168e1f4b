package bus

import (
	"context"
	"sort"
	"testing"
	"time"
)

const (
	TopicTracker = "tracker"
	TopicStatus  = "status"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(Topic{TopicTracker, TopicStatus})

	msg := conn.NewMessage(Topic{TopicTracker, TopicStatus}, "ready", false)
	conn.Publish(msg)

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "ready" {
			t.Errorf("expected payload 'ready', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	msg := conn.NewMessage(Topic{TopicTracker, TopicStatus}, "persist", true)
	conn.Publish(msg)

	sub := conn.Subscribe(Topic{TopicTracker, TopicStatus})

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "persist" {
			t.Errorf("expected retained payload 'persist', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}
}

// -----------------------------------------------------------------------------
// Wildcards
// -----------------------------------------------------------------------------

func TestWildcardPlusMatchesOneLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("ble")

	anyTracker := c.Subscribe(T("tracker", "+"))
	anyConfig := c.Subscribe(T("config", "+"))
	statusOnly := c.Subscribe(T("+", "status"))

	c.Publish(b.NewMessage(T("tracker", "status"), "away", false))
	expectOneOf(t, anyTracker, "away")
	expectOneOf(t, statusOnly, "away")
	expectNoMessage(t, anyConfig)

	c.Publish(b.NewMessage(T("tracker", "history", "page"), "p0", false))
	expectNoMessage(t, anyTracker)
	expectNoMessage(t, statusOnly)

	c.Publish(b.NewMessage(T("tracker"), "bare", false))
	expectNoMessage(t, anyTracker)
}

func TestWildcardHashMatchesSubtree(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("console")

	all := c.Subscribe(T("#"))
	tracker := c.Subscribe(T("tracker", "#"))
	exact := c.Subscribe(T("tracker"))

	c.Publish(b.NewMessage(T("tracker"), "t", false))
	expectOneOf(t, all, "t")
	expectOneOf(t, tracker, "t")
	expectOneOf(t, exact, "t")

	c.Publish(b.NewMessage(T("tracker", "location"), "loc", false))
	expectOneOf(t, all, "loc")
	expectOneOf(t, tracker, "loc")
	expectNoMessage(t, exact)

	c.Publish(b.NewMessage(T("heartbeat", "tick"), "tick", false))
	expectOneOf(t, all, "tick")
	expectNoMessage(t, tracker)
}

func TestRetainedDeliveredToWildcardSubscribers(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("config")

	c.Publish(b.NewMessage(T("config", "tracker"), "trk", true))
	c.Publish(b.NewMessage(T("config", "heartbeat"), "hb", true))
	c.Publish(b.NewMessage(T("config", "board", "pins"), "pins", true))

	got := drainPayloads(t, c.Subscribe(T("config", "#")), 3)
	assertUnorderedEqual(t, got, []string{"trk", "hb", "pins"})

	got = drainPayloads(t, c.Subscribe(T("config", "+")), 2)
	assertUnorderedEqual(t, got, []string{"trk", "hb"})
}

func TestRetainedClearedByNilPayload(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("tracker")

	c.Publish(b.NewMessage(T("tracker", "status"), "stale", true))
	c.Publish(b.NewMessage(T("tracker", "location"), "loc", true))
	c.Publish(b.NewMessage(T("tracker", "status"), nil, true))

	got := drainPayloads(t, c.Subscribe(T("tracker", "#")), 1)
	if got[0] != "loc" {
		t.Fatalf("retained after clear = %v", got)
	}
}

// -----------------------------------------------------------------------------
// Request / reply
// -----------------------------------------------------------------------------

func TestRequestWaitGetsReply(t *testing.T) {
	b := NewBus(8)
	console := b.NewConnection("console")
	tracker := b.NewConnection("tracker")

	cmds := tracker.Subscribe(T("console", "cmd"))
	defer tracker.Unsubscribe(cmds)
	go func() {
		if m, ok := <-cmds.Channel(); ok {
			tracker.Reply(m, "state: AWAKE", false)
		}
	}()

	req := b.NewMessage(T("console", "cmd"), "status", false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	reply, err := console.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("RequestWait: %v", err)
	}
	if s, _ := reply.Payload.(string); s != "state: AWAKE" {
		t.Fatalf("reply payload %#v", reply.Payload)
	}
	if len(req.ReplyTo) == 0 || !topicsEqual(reply.Topic, req.ReplyTo) {
		t.Fatalf("reply topic %v, ReplyTo %v", reply.Topic, req.ReplyTo)
	}
}

func TestRequestWaitTimesOutWithoutResponder(t *testing.T) {
	b := NewBus(8)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := b.NewConnection("console").RequestWait(ctx, b.NewMessage(T("console", "cmd"), "gps", false)); err == nil {
		t.Fatal("expected timeout")
	}
}

func TestRequestWithManualReplySubscription(t *testing.T) {
	b := NewBus(8)
	client := b.NewConnection("client")
	server := b.NewConnection("server")

	reqs := server.Subscribe(T("tracker", "history", "get"))
	defer server.Unsubscribe(reqs)

	replies := client.Request(b.NewMessage(T("tracker", "history", "get"), 2, false))
	defer client.Unsubscribe(replies)

	go func() {
		if m, ok := <-reqs.Channel(); ok {
			server.Reply(m, map[string]any{"page": m.Payload}, false)
		}
	}()

	select {
	case got := <-replies.Channel():
		m, ok := got.Payload.(map[string]any)
		if !ok || m["page"] != 2 {
			t.Fatalf("reply %#v", got.Payload)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("no reply")
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func topicsEqual(a, b Topic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %q, want %q (got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}

func TestTopic_InvalidTokenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for non-comparable token, got none")
		}
	}()

	// []byte is not comparable, so T should panic
	_ = T([]byte{1, 2, 3})
}

func TestPublish_DropsOldestWhenQueueFull(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("link", "event"))

	for _, p := range []string{"connect", "disconnect", "write"} {
		c.Publish(b.NewMessage(T("link", "event"), p, false))
	}

	got := drainPayloads(t, s, 2)
	if got[0] != "disconnect" || got[1] != "write" {
		t.Fatalf("expected oldest dropped, got %v", got)
	}
}

func TestUnsubscribe_ClosesChannelAndStopsDelivery(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	s := c.Subscribe(T("tracker", "history"))
	c.Unsubscribe(s)

	if _, ok := <-s.Channel(); ok {
		t.Fatal("expected closed channel after Unsubscribe")
	}
	// Second unsubscribe is a no-op.
	c.Unsubscribe(s)
	c.Publish(b.NewMessage(T("tracker", "history"), "x", false))
}

func TestTopic_Append(t *testing.T) {
	base := T("ble", "notify")
	got := base.Append("status")
	if got.Len() != 3 || got.At(2) != "status" {
		t.Fatalf("unexpected topic %v", got)
	}
	if base.Len() != 2 {
		t.Fatalf("base topic mutated: %v", base)
	}
}

// bus.go
package bus

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

const (
	wildOne = "+" // exactly one level
	wildAll = "#" // zero or more trailing levels
)

// Topic is a sequence of comparable tokens (usually strings or ints).
type Topic []any

// T builds a topic from tokens. Tokens must be comparable map keys.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int32, int64, uint8, uint16, uint32, bool:
		default:
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }

// Append returns a new topic with extra tokens appended.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, tokens...)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	subs     *node // subscription filters (may contain wildcards)
	retained *node // concrete topics carrying retained messages
	qLen     int
	replySeq atomic.Uint32
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		subs:     &node{},
		retained: &node{},
		qLen:     queueLen,
	}
}

// NewMessage builds a message; a nil payload on a retained topic clears it.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// addSubscription inserts a subscription and replays matching retained messages.
func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	var replay []*Message
	collectRetained(b.retained, sub.topic, &replay)
	for _, m := range replay {
		deliver(sub, m)
	}
}

// collectRetained walks the retained trie with a (possibly wildcard) filter.
func collectRetained(n *node, filter Topic, out *[]*Message) {
	if len(filter) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch filter[0] {
	case wildAll:
		collectAll(n, out)
	case wildOne:
		for _, c := range n.children {
			collectRetained(c, filter[1:], out)
		}
	default:
		if c := n.child(filter[0], false); c != nil {
			collectRetained(c, filter[1:], out)
		}
	}
}

func collectAll(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		collectAll(c, out)
	}
}

// matchSubs collects subscriptions whose filter matches a concrete topic.
func matchSubs(n *node, topic Topic, out *[]*Subscription) {
	if c := n.child(wildAll, false); c != nil {
		*out = append(*out, c.subs...)
	}
	if len(topic) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	if c := n.child(wildOne, false); c != nil {
		matchSubs(c, topic[1:], out)
	}
	if c := n.child(topic[0], false); c != nil {
		matchSubs(c, topic[1:], out)
	}
}

// deliver never blocks: when the queue is full the oldest message is dropped.
func deliver(sub *Subscription, msg *Message) {
	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// Publish delivers a message to all matching subscribers.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.retained
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}

	var targets []*Subscription
	matchSubs(b.subs, msg.Topic, &targets)
	for _, sub := range targets {
		deliver(sub, msg)
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	stack := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		c := n.child(tok, false)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		c := parent.children[key]
		if len(c.subs) == 0 && len(c.children) == 0 {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

var ErrNoReply = errors.New("bus: no reply")

// Request publishes msg with a fresh ReplyTo topic and returns the
// subscription on which the reply will arrive. The caller owns it.
func (c *Connection) Request(msg *Message) *Subscription {
	seq := c.bus.replySeq.Add(1)
	msg.ReplyTo = T("_reply", c.id+"/"+strconv.FormatUint(uint64(seq), 10))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, ErrNoReply
		}
		return m, nil
	}
}

// Reply answers a request on its ReplyTo topic. Requests without ReplyTo are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if req == nil || len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}

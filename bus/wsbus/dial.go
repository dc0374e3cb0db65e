package wsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/msg"
)

// Conn is a remote bus endpoint attached to a relay. Publishes are written
// to the relay immediately; inbound payloads are queued per subscription
// and dispatched only from SpinOnce, on the calling goroutine.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs []*remoteSub
	next int

	closed       atomic.Bool
	readErr      atomic.Value
	delivered    atomic.Uint64
	dropped      atomic.Uint64
	decodeErrors atomic.Uint64
}

// Dial connects to a relay URL (ws:// or wss://) and starts the read loop.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	c := &Conn{ws: ws}
	go c.readLoop()
	return c, nil
}

// CreatePublisher opens an outbound handle on a topic.
func (c *Conn) CreatePublisher(topic string, schema msg.Schema, qos bus.QoS) (bus.Publisher, error) {
	if c.closed.Load() {
		return nil, bus.ErrClosed
	}
	if schema == nil {
		return nil, fmt.Errorf("wsbus: publisher on %q without schema", topic)
	}
	return &remotePub{conn: c, topic: topic, schema: schema}, nil
}

// CreateSubscription opens an inbound handle on a topic and announces it to
// the relay.
func (c *Conn) CreateSubscription(topic string, schema msg.Schema, qos bus.QoS, cb bus.Callback) (bus.Subscription, error) {
	if c.closed.Load() {
		return nil, bus.ErrClosed
	}
	if schema == nil {
		return nil, fmt.Errorf("wsbus: subscription on %q without schema", topic)
	}
	if cb == nil {
		return nil, fmt.Errorf("wsbus: subscription on %q without callback", topic)
	}
	s := &remoteSub{
		conn:     c,
		topic:    topic,
		schema:   schema,
		cb:       cb,
		queue:    make(chan []byte, qosDepth(qos)),
		reliable: qos.Reliability == bus.ReliabilityReliable,
	}
	if err := c.writeFrame(frame{Op: opSubscribe, Topic: topic}); err != nil {
		return nil, fmt.Errorf("announce subscription on %q: %w", topic, err)
	}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s, nil
}

// SpinOnce processes at most one queued inbound message and reports whether
// one was consumed.
func (c *Conn) SpinOnce() bool {
	c.mu.Lock()
	subs := append([]*remoteSub(nil), c.subs...)
	start := c.next
	c.mu.Unlock()

	for i := range subs {
		s := subs[(start+i)%len(subs)]
		select {
		case payload := <-s.queue:
			c.mu.Lock()
			c.next = (start + i + 1) % len(subs)
			c.mu.Unlock()
			if s.closed.Load() {
				return true
			}
			m, err := s.schema.Decode(payload)
			if err != nil {
				c.decodeErrors.Add(1)
				return true
			}
			s.cb(m)
			c.delivered.Add(1)
			return true
		default:
		}
	}
	return false
}

// SpinAll processes queued inbound messages until none remain.
func (c *Conn) SpinAll() int {
	count := 0
	for c.SpinOnce() {
		count++
	}
	return count
}

// Stats returns a snapshot of the connection's traffic counters.
func (c *Conn) Stats() bus.NodeStats {
	return bus.NodeStats{
		Delivered:    c.delivered.Load(),
		Dropped:      c.dropped.Load(),
		DecodeErrors: c.decodeErrors.Load(),
	}
}

// Err returns the error that terminated the read loop, if any.
func (c *Conn) Err() error {
	if err, ok := c.readErr.Load().(error); ok {
		return err
	}
	return nil
}

// Close tears down the connection. Queued but unprocessed payloads are
// discarded.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return bus.ErrClosed
	}
	return c.ws.Close()
}

func (c *Conn) readLoop() {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.readErr.Store(err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			c.decodeErrors.Add(1)
			continue
		}
		if f.Op != opPublish {
			continue
		}
		c.mu.Lock()
		subs := append([]*remoteSub(nil), c.subs...)
		c.mu.Unlock()
		for _, s := range subs {
			if s.topic == f.Topic {
				s.offer(f.Payload)
			}
		}
	}
}

func (c *Conn) writeFrame(f frame) error {
	if c.closed.Load() {
		return bus.ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func (c *Conn) removeSub(s *remoteSub) {
	c.mu.Lock()
	for i, candidate := range c.subs {
		if candidate == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	if c.next >= len(c.subs) {
		c.next = 0
	}
	c.mu.Unlock()
}

type remotePub struct {
	conn   *Conn
	topic  string
	schema msg.Schema
	closed atomic.Bool
}

func (p *remotePub) Topic() string { return p.topic }

func (p *remotePub) Publish(m msg.Message) error {
	if p.closed.Load() {
		return bus.ErrClosed
	}
	if m.Schema().Name() != p.schema.Name() {
		return fmt.Errorf("%w: topic %q wants %s, got %s",
			bus.ErrSchemaMismatch, p.topic, p.schema.Name(), m.Schema().Name())
	}
	payload, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode %s on %q: %w", p.schema.Name(), p.topic, err)
	}
	return p.conn.writeFrame(frame{Op: opPublish, Topic: p.topic, Payload: payload})
}

func (p *remotePub) Close() error {
	if p.closed.Swap(true) {
		return bus.ErrClosed
	}
	return nil
}

type remoteSub struct {
	conn     *Conn
	topic    string
	schema   msg.Schema
	cb       bus.Callback
	queue    chan []byte
	reliable bool
	closed   atomic.Bool
}

func (s *remoteSub) Topic() string { return s.topic }

func (s *remoteSub) Close() error {
	if s.closed.Swap(true) {
		return bus.ErrClosed
	}
	s.conn.removeSub(s)
	// Best effort: the relay drops the tap when the frame arrives. A write
	// failure here still leaves the local handle closed.
	if err := s.conn.writeFrame(frame{Op: opUnsubscribe, Topic: s.topic}); err != nil && err != bus.ErrClosed {
		return fmt.Errorf("announce unsubscribe on %q: %w", s.topic, err)
	}
	return nil
}

func (s *remoteSub) offer(payload []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.queue <- payload:
		return
	default:
	}
	if s.reliable {
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- payload:
			return
		default:
		}
	}
	s.conn.dropped.Add(1)
}

func qosDepth(q bus.QoS) int {
	if q.Depth > 0 {
		return q.Depth
	}
	return bus.DefaultDepth
}

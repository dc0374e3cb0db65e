package bus

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ricmua/ros-spheres-environment/msg"
)

// Graph is an in-process topic graph. Nodes attached to the same graph
// exchange encoded payloads by topic name. The graph only routes; decoding
// and callback dispatch belong to the subscribing node's spin pump.
type Graph struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
	taps map[string]map[*tap]struct{}
}

// NewGraph returns an empty topic graph.
func NewGraph() *Graph {
	return &Graph{
		subs: make(map[string]map[*subscription]struct{}),
		taps: make(map[string]map[*tap]struct{}),
	}
}

// Node attaches a named node to the graph. The name is diagnostic only.
func (g *Graph) Node(name string) *Node {
	return &Node{graph: g, name: name}
}

// Inject delivers an already-encoded payload to every subscription and tap
// on a topic. It is the integration point for transports relaying foreign
// traffic into the graph. It returns the number of queues the payload
// reached.
func (g *Graph) Inject(topic string, payload []byte) int {
	g.mu.Lock()
	targets := make([]*subscription, 0, len(g.subs[topic]))
	for s := range g.subs[topic] {
		targets = append(targets, s)
	}
	observers := make([]*tap, 0, len(g.taps[topic]))
	for t := range g.taps[topic] {
		observers = append(observers, t)
	}
	g.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		if s.offer(payload) {
			delivered++
		}
	}
	for _, t := range observers {
		if !t.closed.Load() {
			t.fn(payload)
			delivered++
		}
	}
	return delivered
}

// Tap observes every payload published on a topic without decoding it. The
// callback runs synchronously on the publishing goroutine; transports use
// taps to forward traffic to remote peers.
func (g *Graph) Tap(topic string, fn func(payload []byte)) (Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("bus: tap on %q without callback", topic)
	}
	t := &tap{graph: g, topic: topic, fn: fn}
	g.mu.Lock()
	if g.taps[topic] == nil {
		g.taps[topic] = make(map[*tap]struct{})
	}
	g.taps[topic][t] = struct{}{}
	g.mu.Unlock()
	return t, nil
}

// SubscriptionCount reports the number of live subscriptions on a topic,
// taps excluded.
func (g *Graph) SubscriptionCount(topic string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs[topic])
}

// Topics returns the topics with at least one live subscription, sorted.
func (g *Graph) Topics() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	topics := make([]string, 0, len(g.subs))
	for topic, set := range g.subs {
		if len(set) > 0 {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)
	return topics
}

func (g *Graph) addSubscription(s *subscription) {
	g.mu.Lock()
	if g.subs[s.topic] == nil {
		g.subs[s.topic] = make(map[*subscription]struct{})
	}
	g.subs[s.topic][s] = struct{}{}
	g.mu.Unlock()
}

func (g *Graph) removeSubscription(s *subscription) {
	g.mu.Lock()
	if set, ok := g.subs[s.topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(g.subs, s.topic)
		}
	}
	g.mu.Unlock()
}

func (g *Graph) removeTap(t *tap) {
	g.mu.Lock()
	if set, ok := g.taps[t.topic]; ok {
		delete(set, t)
		if len(set) == 0 {
			delete(g.taps, t.topic)
		}
	}
	g.mu.Unlock()
}

// NodeStats counts the traffic a node has processed.
type NodeStats struct {
	Delivered    uint64
	Dropped      uint64
	DecodeErrors uint64
}

// Node is one endpoint attached to a graph. Publish may be called from any
// goroutine; callbacks run only inside SpinOnce or SpinAll on the calling
// goroutine, one message per turn.
type Node struct {
	graph *Graph
	name  string

	mu   sync.Mutex
	subs []*subscription
	next int

	delivered    atomic.Uint64
	dropped      atomic.Uint64
	decodeErrors atomic.Uint64
}

// Name returns the diagnostic node name.
func (n *Node) Name() string { return n.name }

// CreatePublisher opens an outbound handle on a topic. Messages published
// through it must carry the declared schema.
func (n *Node) CreatePublisher(topic string, schema msg.Schema, qos QoS) (Publisher, error) {
	if schema == nil {
		return nil, fmt.Errorf("bus: publisher on %q without schema", topic)
	}
	return &publisher{graph: n.graph, topic: topic, schema: schema, qos: qos}, nil
}

// CreateSubscription opens an inbound handle on a topic. The payload queue
// capacity and overflow policy come from the QoS profile.
func (n *Node) CreateSubscription(topic string, schema msg.Schema, qos QoS, cb Callback) (Subscription, error) {
	if schema == nil {
		return nil, fmt.Errorf("bus: subscription on %q without schema", topic)
	}
	if cb == nil {
		return nil, fmt.Errorf("bus: subscription on %q without callback", topic)
	}
	s := &subscription{
		graph:    n.graph,
		node:     n,
		topic:    topic,
		schema:   schema,
		cb:       cb,
		queue:    make(chan []byte, qos.depth()),
		reliable: qos.Reliability == ReliabilityReliable,
	}
	n.mu.Lock()
	n.subs = append(n.subs, s)
	n.mu.Unlock()
	n.graph.addSubscription(s)
	return s, nil
}

// SpinOnce processes at most one pending inbound message and reports
// whether one was consumed. Subscriptions are served round-robin.
func (n *Node) SpinOnce() bool {
	n.mu.Lock()
	subs := append([]*subscription(nil), n.subs...)
	start := n.next
	n.mu.Unlock()

	for i := range subs {
		s := subs[(start+i)%len(subs)]
		select {
		case payload := <-s.queue:
			n.mu.Lock()
			n.next = (start + i + 1) % len(subs)
			n.mu.Unlock()
			if s.closed.Load() {
				return true
			}
			m, err := s.schema.Decode(payload)
			if err != nil {
				n.decodeErrors.Add(1)
				return true
			}
			s.cb(m)
			n.delivered.Add(1)
			return true
		default:
		}
	}
	return false
}

// SpinAll processes pending inbound messages until none remain and returns
// the number consumed.
func (n *Node) SpinAll() int {
	count := 0
	for n.SpinOnce() {
		count++
	}
	return count
}

// Stats returns a snapshot of the node's traffic counters.
func (n *Node) Stats() NodeStats {
	return NodeStats{
		Delivered:    n.delivered.Load(),
		Dropped:      n.dropped.Load(),
		DecodeErrors: n.decodeErrors.Load(),
	}
}

// Close releases every subscription still held by the node.
func (n *Node) Close() error {
	n.mu.Lock()
	subs := append([]*subscription(nil), n.subs...)
	n.mu.Unlock()
	for _, s := range subs {
		if err := s.Close(); err != nil && err != ErrClosed {
			return err
		}
	}
	return nil
}

func (n *Node) removeSub(s *subscription) {
	n.mu.Lock()
	for i, candidate := range n.subs {
		if candidate == s {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	if n.next >= len(n.subs) {
		n.next = 0
	}
	n.mu.Unlock()
}

type publisher struct {
	graph  *Graph
	topic  string
	schema msg.Schema
	qos    QoS
	closed atomic.Bool
}

func (p *publisher) Topic() string { return p.topic }

// Publish encodes the message and hands it to every subscriber queue on the
// topic. It never waits for the remote side.
func (p *publisher) Publish(m msg.Message) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if m.Schema().Name() != p.schema.Name() {
		return fmt.Errorf("%w: topic %q wants %s, got %s",
			ErrSchemaMismatch, p.topic, p.schema.Name(), m.Schema().Name())
	}
	payload, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode %s on %q: %w", p.schema.Name(), p.topic, err)
	}
	p.graph.Inject(p.topic, payload)
	return nil
}

func (p *publisher) Close() error {
	if p.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}

type subscription struct {
	graph    *Graph
	node     *Node
	topic    string
	schema   msg.Schema
	cb       Callback
	queue    chan []byte
	reliable bool
	closed   atomic.Bool
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	s.graph.removeSubscription(s)
	s.node.removeSub(s)
	return nil
}

// offer enqueues a payload without blocking. On overflow the reliable
// policy evicts the oldest queued payload; otherwise the new payload is
// dropped.
func (s *subscription) offer(payload []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.queue <- payload:
		return true
	default:
	}
	if s.reliable {
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- payload:
			return true
		default:
		}
	}
	s.node.dropped.Add(1)
	return false
}

type tap struct {
	graph  *Graph
	topic  string
	fn     func(payload []byte)
	closed atomic.Bool
}

func (t *tap) Topic() string { return t.topic }

func (t *tap) Close() error {
	if t.closed.Swap(true) {
		return ErrClosed
	}
	t.graph.removeTap(t)
	return nil
}

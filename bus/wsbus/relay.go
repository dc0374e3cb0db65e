package wsbus

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ricmua/ros-spheres-environment/bus"
)

// RelayConfig adjusts relay behaviour.
type RelayConfig struct {
	Logger *log.Logger
}

// Relay accepts WebSocket peers and splices their topic traffic into an
// in-process graph. Subscribe frames open graph taps that forward matching
// payloads back to the peer; publish frames are injected into the graph for
// local nodes and other peers alike.
type Relay struct {
	graph    *bus.Graph
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*relayConn]struct{}
}

type relayConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // guards writes

	taps map[string]*relayTap
}

type relayTap struct {
	sub  bus.Subscription
	refs int
}

// NewRelay returns a relay splicing peers into graph.
func NewRelay(graph *bus.Graph, cfg RelayConfig) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Relay{
		graph:  graph,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		conns: make(map[*relayConn]struct{}),
	}
}

// Handle upgrades an HTTP request and serves the peer until it disconnects.
func (r *Relay) Handle(w nethttp.ResponseWriter, req *nethttp.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("upgrade failed for %s: %v", req.RemoteAddr, err)
		return
	}

	c := &relayConn{conn: conn, taps: make(map[string]*relayTap)}
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()

	defer r.drop(c)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			r.logger.Printf("discarding malformed frame from %s: %v", req.RemoteAddr, err)
			continue
		}

		switch f.Op {
		case opPublish:
			r.graph.Inject(f.Topic, f.Payload)
		case opSubscribe:
			if err := r.subscribe(c, f.Topic); err != nil {
				r.logger.Printf("subscribe %q for %s: %v", f.Topic, req.RemoteAddr, err)
			}
		case opUnsubscribe:
			r.unsubscribe(c, f.Topic)
		default:
			r.logger.Printf("discarding frame with unknown op %q from %s", f.Op, req.RemoteAddr)
		}
	}
}

// ConnCount reports the number of connected peers.
func (r *Relay) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Relay) subscribe(c *relayConn, topic string) error {
	c.mu.Lock()
	if t, ok := c.taps[topic]; ok {
		t.refs++
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	sub, err := r.graph.Tap(topic, func(payload []byte) {
		if err := c.writeFrame(frame{Op: opPublish, Topic: topic, Payload: payload}); err != nil {
			r.logger.Printf("forward on %q failed: %v", topic, err)
		}
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.taps[topic] = &relayTap{sub: sub, refs: 1}
	c.mu.Unlock()
	return nil
}

func (r *Relay) unsubscribe(c *relayConn, topic string) {
	c.mu.Lock()
	t, ok := c.taps[topic]
	if ok {
		t.refs--
		if t.refs <= 0 {
			delete(c.taps, topic)
		} else {
			t = nil
		}
	}
	c.mu.Unlock()
	if ok && t != nil {
		if err := t.sub.Close(); err != nil {
			r.logger.Printf("close tap on %q: %v", topic, err)
		}
	}
}

func (r *Relay) drop(c *relayConn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()

	c.mu.Lock()
	taps := c.taps
	c.taps = make(map[string]*relayTap)
	c.mu.Unlock()

	for topic, t := range taps {
		if err := t.sub.Close(); err != nil {
			r.logger.Printf("close tap on %q: %v", topic, err)
		}
	}
	c.conn.Close()
}

func (c *relayConn) writeFrame(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

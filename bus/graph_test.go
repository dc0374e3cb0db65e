package bus

import (
	"errors"
	"testing"

	"github.com/ricmua/ros-spheres-environment/msg"
)

func TestPublishReachesSubscriberAfterSpin(t *testing.T) {
	graph := NewGraph()
	sender := graph.Node("sender")
	receiver := graph.Node("receiver")

	var got []msg.Message
	if _, err := receiver.CreateSubscription("cursor/radius", msg.Float64Schema, SystemDefault(), func(m msg.Message) {
		got = append(got, m)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pub, err := sender.CreatePublisher("cursor/radius", msg.Float64Schema, SystemDefault())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pub.Publish(msg.Float64{Data: 0.1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("callback must not run before the node is spun")
	}
	if !receiver.SpinOnce() {
		t.Fatalf("expected a message to be consumed")
	}
	if len(got) != 1 || got[0].(msg.Float64).Data != 0.1 {
		t.Fatalf("unexpected delivery %v", got)
	}
	if receiver.SpinOnce() {
		t.Fatalf("expected the queue to be drained")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	graph := NewGraph()
	sender := graph.Node("sender")
	receiver := graph.Node("receiver")

	var radius, position int
	receiver.CreateSubscription("cursor/radius", msg.Float64Schema, SystemDefault(), func(msg.Message) { radius++ })
	receiver.CreateSubscription("cursor/position", msg.PointSchema, SystemDefault(), func(msg.Message) { position++ })

	pub, _ := sender.CreatePublisher("cursor/radius", msg.Float64Schema, SystemDefault())
	pub.Publish(msg.Float64{Data: 1})

	if n := receiver.SpinAll(); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
	if radius != 1 || position != 0 {
		t.Fatalf("expected delivery on the radius topic only, got radius=%d position=%d", radius, position)
	}
}

func TestNodeReceivesOwnPublications(t *testing.T) {
	graph := NewGraph()
	node := graph.Node("loopback")

	received := 0
	node.CreateSubscription("initialize", msg.StringSchema, SystemDefault(), func(msg.Message) { received++ })

	pub, _ := node.CreatePublisher("initialize", msg.StringSchema, SystemDefault())
	pub.Publish(msg.String{Data: "cursor"})

	node.SpinAll()
	if received != 1 {
		t.Fatalf("expected loopback delivery, got %d", received)
	}
}

func TestBestEffortDropsNewestOnOverflow(t *testing.T) {
	graph := NewGraph()
	sender := graph.Node("sender")
	receiver := graph.Node("receiver")

	var got []string
	receiver.CreateSubscription("initialize", msg.StringSchema, QoS{Depth: 2, Reliability: ReliabilityBestEffort}, func(m msg.Message) {
		got = append(got, m.(msg.String).Data)
	})

	pub, _ := sender.CreatePublisher("initialize", msg.StringSchema, BestEffort())
	for _, key := range []string{"a", "b", "c"} {
		pub.Publish(msg.String{Data: key})
	}

	receiver.SpinAll()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected the newest payload to be dropped, got %v", got)
	}
	if stats := receiver.Stats(); stats.Dropped != 1 {
		t.Fatalf("expected 1 drop, got %d", stats.Dropped)
	}
}

func TestReliableEvictsOldestOnOverflow(t *testing.T) {
	graph := NewGraph()
	sender := graph.Node("sender")
	receiver := graph.Node("receiver")

	var got []string
	receiver.CreateSubscription("initialize", msg.StringSchema, QoS{Depth: 2, Reliability: ReliabilityReliable}, func(m msg.Message) {
		got = append(got, m.(msg.String).Data)
	})

	pub, _ := sender.CreatePublisher("initialize", msg.StringSchema, Reliable())
	for _, key := range []string{"a", "b", "c"} {
		pub.Publish(msg.String{Data: key})
	}

	receiver.SpinAll()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected the oldest payload to be evicted, got %v", got)
	}
}

func TestPublisherRejectsWrongSchema(t *testing.T) {
	graph := NewGraph()
	node := graph.Node("sender")

	pub, _ := node.CreatePublisher("cursor/radius", msg.Float64Schema, SystemDefault())
	if err := pub.Publish(msg.String{Data: "cursor"}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestSubscriptionCloseRemovesRegistryEntry(t *testing.T) {
	graph := NewGraph()
	node := graph.Node("receiver")

	sub, err := node.CreateSubscription("cursor/radius", msg.Float64Schema, SystemDefault(), func(msg.Message) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.SubscriptionCount("cursor/radius") != 1 {
		t.Fatalf("expected a live subscription")
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.SubscriptionCount("cursor/radius") != 0 {
		t.Fatalf("expected the registry entry to be removed")
	}
	if err := sub.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on double close, got %v", err)
	}
}

func TestPublisherDoubleClose(t *testing.T) {
	graph := NewGraph()
	node := graph.Node("sender")

	pub, _ := node.CreatePublisher("initialize", msg.StringSchema, SystemDefault())
	if err := pub.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pub.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := pub.Publish(msg.String{Data: "cursor"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on publish after close, got %v", err)
	}
}

func TestTapObservesRawPayloads(t *testing.T) {
	graph := NewGraph()
	node := graph.Node("sender")

	var raw [][]byte
	tap, err := graph.Tap("initialize", func(payload []byte) {
		raw = append(raw, payload)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pub, _ := node.CreatePublisher("initialize", msg.StringSchema, SystemDefault())
	pub.Publish(msg.String{Data: "cursor"})

	if len(raw) != 1 {
		t.Fatalf("expected the tap to fire synchronously, got %d payloads", len(raw))
	}
	if string(raw[0]) != `{"data":"cursor"}` {
		t.Fatalf("unexpected payload %s", raw[0])
	}

	if err := tap.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub.Publish(msg.String{Data: "cursor"})
	if len(raw) != 1 {
		t.Fatalf("expected no delivery after tap close")
	}
}

func TestInjectFeedsSubscriptions(t *testing.T) {
	graph := NewGraph()
	receiver := graph.Node("receiver")

	var got string
	receiver.CreateSubscription("initialize", msg.StringSchema, SystemDefault(), func(m msg.Message) {
		got = m.(msg.String).Data
	})

	if n := graph.Inject("initialize", []byte(`{"data":"cursor"}`)); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	receiver.SpinAll()
	if got != "cursor" {
		t.Fatalf("unexpected delivery %q", got)
	}
}

func TestDecodeErrorIsCountedNotDispatched(t *testing.T) {
	graph := NewGraph()
	receiver := graph.Node("receiver")

	called := false
	receiver.CreateSubscription("initialize", msg.StringSchema, SystemDefault(), func(msg.Message) { called = true })

	graph.Inject("initialize", []byte("not json"))
	receiver.SpinAll()

	if called {
		t.Fatalf("callback must not run for undecodable payloads")
	}
	if stats := receiver.Stats(); stats.DecodeErrors != 1 {
		t.Fatalf("expected 1 decode error, got %d", stats.DecodeErrors)
	}
}

func TestNodeCloseReleasesSubscriptions(t *testing.T) {
	graph := NewGraph()
	node := graph.Node("receiver")

	node.CreateSubscription("a", msg.StringSchema, SystemDefault(), func(msg.Message) {})
	node.CreateSubscription("b", msg.StringSchema, SystemDefault(), func(msg.Message) {})

	if err := node.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Topics()) != 0 {
		t.Fatalf("expected no live topics, got %v", graph.Topics())
	}
}

// Package bus provides the publish/subscribe endpoint the bridge is built
// on: a topic graph routing encoded messages between nodes. Delivery is
// fire-and-forget; a publish returns once the payload has been handed to
// every subscriber queue, with no acknowledgement. Subscription callbacks
// run only when the owning node is spun, one message per turn.
package bus

import (
	"errors"

	"github.com/ricmua/ros-spheres-environment/msg"
)

var (
	// ErrClosed is returned when operating a publisher or subscription
	// handle that has already been closed.
	ErrClosed = errors.New("bus: handle closed")

	// ErrSchemaMismatch is returned when a message of the wrong type is
	// handed to a publisher.
	ErrSchemaMismatch = errors.New("bus: schema mismatch")
)

// Callback handles one decoded inbound message. Callbacks are invoked
// synchronously from the spin pump of the node that owns the subscription.
type Callback func(m msg.Message)

// Endpoint is the messaging surface consumed by the bridge. Both the
// in-process Node and the wsbus remote connection implement it.
type Endpoint interface {
	CreatePublisher(topic string, schema msg.Schema, qos QoS) (Publisher, error)
	CreateSubscription(topic string, schema msg.Schema, qos QoS, cb Callback) (Subscription, error)
}

// Publisher is an outbound handle bound to one topic and schema.
type Publisher interface {
	Topic() string
	Publish(m msg.Message) error
	Close() error
}

// Subscription is an inbound handle bound to one topic.
type Subscription interface {
	Topic() string
	Close() error
}

package spheresenv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/logging"
	"github.com/ricmua/ros-spheres-environment/msg"
)

// ClientOption adjusts client construction.
type ClientOption func(*Client)

// WithClientTopicOverrides replaces the schema/QoS defaults for the named
// topics on the client side.
func WithClientTopicOverrides(overrides TopicOverrides) ClientOption {
	return func(c *Client) { c.overrides = overrides }
}

// WithClientLogger attaches a structured event publisher.
func WithClientLogger(p logging.Publisher) ClientOption {
	return func(c *Client) {
		if p != nil {
			c.log = p
		}
	}
}

// Client mirrors a remote spheres environment. Creating an object publishes
// a spawn notification and immediately builds a local proxy, so property
// writes can be issued without waiting for a round trip. Nothing is
// acknowledged: the mirror can exist before, concurrently with, or never
// matched by the authoritative side.
type Client struct {
	mu        sync.Mutex
	endpoint  bus.Endpoint
	overrides TopicOverrides
	log       logging.Publisher
	lifecycle map[string]boundPublisher
	objects   map[string]*Sphere
	closed    bool
}

// NewClient returns a client bound to the given endpoint. A nil endpoint is
// allowed; every mutating operation then fails with ErrNoEndpoint until
// BindEndpoint is called.
func NewClient(endpoint bus.Endpoint, opts ...ClientOption) (*Client, error) {
	c := &Client{
		log:       logging.NopPublisher(),
		lifecycle: make(map[string]boundPublisher),
		objects:   make(map[string]*Sphere),
	}
	for _, opt := range opts {
		opt(c)
	}
	if endpoint != nil {
		if err := c.BindEndpoint(endpoint); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BindEndpoint tears down the lifecycle publishers held against the
// previous endpoint, if any, and recreates them against the new one.
// Teardown failures are reported but do not prevent the rebind.
func (c *Client) BindEndpoint(endpoint bus.Endpoint) error {
	if endpoint == nil {
		return ErrNoEndpoint
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	teardownErr := c.closeLifecycleLocked()
	c.endpoint = endpoint

	for _, topic := range []string{TopicInitialize, TopicDestroy} {
		schema, qos := c.overrides.paramsFor(topic, msg.StringSchema)
		pub, err := endpoint.CreatePublisher(topic, schema, qos)
		if err != nil {
			return errors.Join(teardownErr, fmt.Errorf("create publisher on %q: %w", topic, err))
		}
		c.lifecycle[topic] = boundPublisher{pub: pub, schema: schema}
	}

	c.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventEndpointBound,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: "client", Kind: logging.EntityKindEndpoint},
	})
	return teardownErr
}

// InitializeObject publishes a spawn notification for key and then creates
// the local proxy. The notification goes out first; the proxy exists
// whether or not any bridge ever observes the spawn.
func (c *Client) InitializeObject(key string) (*Sphere, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.endpoint == nil {
		return nil, ErrNoEndpoint
	}
	if _, ok := c.objects[key]; ok {
		return nil, fmt.Errorf("%w: %q", ErrObjectExists, key)
	}

	if err := c.publishLifecycleLocked(TopicInitialize, key); err != nil {
		return nil, err
	}

	sphere, err := newSphere(key, c.endpoint, c.overrides)
	if err != nil {
		// The spawn is already on the wire; retract it so the bridge does
		// not keep an object the client never mirrors. Best effort, like
		// every other notification.
		if retractErr := c.publishLifecycleLocked(TopicDestroy, key); retractErr != nil {
			return nil, errors.Join(err, retractErr)
		}
		return nil, err
	}
	c.objects[key] = sphere

	c.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventObjectSpawned,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: key, Kind: logging.EntityKindObject},
	})
	return sphere, nil
}

// DestroyObject publishes a destroy notification for key and removes the
// local proxy, releasing its publishers.
func (c *Client) DestroyObject(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.endpoint == nil {
		return ErrNoEndpoint
	}
	sphere, ok := c.objects[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, key)
	}

	if err := c.publishLifecycleLocked(TopicDestroy, key); err != nil {
		return err
	}

	closeErr := sphere.close()
	delete(c.objects, key)

	c.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventObjectDestroyed,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: key, Kind: logging.EntityKindObject},
	})
	return closeErr
}

// Object returns the local proxy for key.
func (c *Client) Object(key string) (*Sphere, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sphere, ok := c.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownObject, key)
	}
	return sphere, nil
}

// Objects returns the mirrored proxies in sorted key order.
func (c *Client) Objects() []*Sphere {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.objects))
	for key := range c.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	objects := make([]*Sphere, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, c.objects[key])
	}
	return objects
}

// Keys returns the mirrored object keys in sorted order.
func (c *Client) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.objects))
	for key := range c.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of mirrored objects.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// Close releases every proxy publisher and the lifecycle publishers. Safe
// to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for key, sphere := range c.objects {
		if err := sphere.close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.objects, key)
	}
	errs = append(errs, c.closeLifecycleLocked())
	return errors.Join(errs...)
}

func (c *Client) publishLifecycleLocked(topic, key string) error {
	bound, ok := c.lifecycle[topic]
	if !ok {
		return ErrNoEndpoint
	}
	m, err := bound.schema.FromValue(key)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := bound.pub.Publish(m); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) closeLifecycleLocked() error {
	var errs []error
	for topic, bound := range c.lifecycle {
		if err := bound.pub.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			errs = append(errs, fmt.Errorf("close publisher on %q: %w", topic, err))
		}
		delete(c.lifecycle, topic)
	}
	return errors.Join(errs...)
}

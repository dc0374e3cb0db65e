package spheresenv

import (
	"errors"
	"fmt"

	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/env"
	"github.com/ricmua/ros-spheres-environment/msg"
)

// boundPublisher pairs an outbound handle with the schema its topic
// carries.
type boundPublisher struct {
	pub    bus.Publisher
	schema msg.Schema
}

// Sphere is the client-side stand-in for one remote spherical object. Every
// property write is stored on the local mirror and published on the
// object's per-property topic; no acknowledgement is awaited. A Sphere is
// not safe for concurrent use.
type Sphere struct {
	key    string
	local  *env.Sphere
	pubs   map[env.Property]boundPublisher
	closed bool
}

// newSphere allocates one publisher per declared property, on topic
// {key}/{property}.
func newSphere(key string, endpoint bus.Endpoint, overrides TopicOverrides) (*Sphere, error) {
	s := &Sphere{
		key:   key,
		local: env.NewSphere(key),
		pubs:  make(map[env.Property]boundPublisher),
	}
	for _, p := range s.local.Properties() {
		topic := PropertyTopic(key, p)
		schema, qos := overrides.paramsFor(topic, schemaForProperty(p))
		pub, err := endpoint.CreatePublisher(topic, schema, qos)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("create publisher on %q: %w", topic, err)
		}
		s.pubs[p] = boundPublisher{pub: pub, schema: schema}
	}
	return s, nil
}

// Key returns the object key.
func (s *Sphere) Key() string { return s.key }

// Properties returns the declared property keys.
func (s *Sphere) Properties() []env.Property { return s.local.Properties() }

// Set stores a property value on the local mirror and publishes it. The
// property must be declared by the object type; the value must fit the
// topic's schema.
func (s *Sphere) Set(p env.Property, value any) error {
	if s.closed {
		return fmt.Errorf("%w: %q", ErrObjectDestroyed, s.key)
	}
	bound, ok := s.pubs[p]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidProperty, p)
	}
	if err := s.local.Set(p, value); err != nil {
		return err
	}
	m, err := bound.schema.FromValue(propertyValue(value))
	if err != nil {
		return fmt.Errorf("encode %s: %w", PropertyTopic(s.key, p), err)
	}
	if err := bound.pub.Publish(m); err != nil {
		return fmt.Errorf("publish %s: %w", PropertyTopic(s.key, p), err)
	}
	return nil
}

// SetPosition publishes a new position.
func (s *Sphere) SetPosition(v env.Vector) error {
	return s.Set(env.PropertyPosition, v)
}

// SetRadius publishes a new radius.
func (s *Sphere) SetRadius(r float64) error {
	return s.Set(env.PropertyRadius, r)
}

// SetColor publishes a new color.
func (s *Sphere) SetColor(c env.Color) error {
	return s.Set(env.PropertyColor, c)
}

// Get returns the mirrored value of a property and whether it has been set.
func (s *Sphere) Get(p env.Property) (any, bool) {
	return s.local.Get(p)
}

// State returns the mirrored properties keyed by property name.
func (s *Sphere) State() map[env.Property]any {
	return s.local.State()
}

// close releases every publisher allocated at construction. Safe to call
// more than once.
func (s *Sphere) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for p, bound := range s.pubs {
		if err := bound.pub.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			errs = append(errs, fmt.Errorf("close publisher on %q: %w", PropertyTopic(s.key, p), err))
		}
		delete(s.pubs, p)
	}
	return errors.Join(errs...)
}

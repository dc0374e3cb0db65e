package spheresenv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/env"
	"github.com/ricmua/ros-spheres-environment/logging"
	"github.com/ricmua/ros-spheres-environment/msg"
)

const defaultEventQueueSize = 64

// ServerOption adjusts server construction.
type ServerOption func(*Server)

// WithServerTopicOverrides replaces the schema/QoS defaults for the named
// topics on the server side.
func WithServerTopicOverrides(overrides TopicOverrides) ServerOption {
	return func(s *Server) { s.overrides = overrides }
}

// WithServerLogger attaches a structured event publisher.
func WithServerLogger(p logging.Publisher) ServerOption {
	return func(s *Server) {
		if p != nil {
			s.log = p
		}
	}
}

// WithEventQueueSize sets the capacity of the inbound property event queue.
func WithEventQueueSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// propertyEvent is one decoded inbound property update, queued between
// decode time and mutation time. The event names the object by key; the
// authoritative object is looked up only when the event is applied.
type propertyEvent struct {
	key      string
	property env.Property
	value    any
}

// managedObject pairs an authoritative object with the property
// subscriptions opened for it. Destroying the object releases exactly these
// handles.
type managedObject struct {
	object env.Object
	subs   map[env.Property]bus.Subscription
}

func (m *managedObject) closeSubscriptions() error {
	var errs []error
	for p, sub := range m.subs {
		if err := sub.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			errs = append(errs, fmt.Errorf("close subscription on %q: %w", sub.Topic(), err))
		}
		delete(m.subs, p)
	}
	return errors.Join(errs...)
}

// Server owns the authoritative environment and keeps it in sync with topic
// traffic. It subscribes to the initialize and destroy topics for the
// lifetime of its bindings and, per managed object, to one topic per
// declared property. Every managed object is either absent or active; there
// is no other state.
type Server struct {
	mu          sync.Mutex
	endpoint    bus.Endpoint
	environment *env.Environment
	overrides   TopicOverrides
	log         logging.Publisher
	lifecycle   map[string]bus.Subscription
	objects     map[string]*managedObject
	events      chan propertyEvent
	queueSize   int
	closed      bool
}

// NewServer returns a server bound to the given endpoint and environment.
// Either may be nil; subscriptions are created once both are bound.
func NewServer(endpoint bus.Endpoint, environment *env.Environment, opts ...ServerOption) (*Server, error) {
	s := &Server{
		log:       logging.NopPublisher(),
		lifecycle: make(map[string]bus.Subscription),
		objects:   make(map[string]*managedObject),
		queueSize: defaultEventQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = make(chan propertyEvent, s.queueSize)

	if endpoint != nil {
		if err := s.BindEndpoint(endpoint); err != nil {
			return nil, err
		}
	}
	if environment != nil {
		if err := s.BindEnvironment(environment); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// BindEndpoint tears down every subscription held against the previous
// endpoint and, if an environment is bound, recreates the lifecycle
// subscriptions and the property subscriptions of every object currently
// present. Teardown failures are reported but do not prevent the rebind.
func (s *Server) BindEndpoint(endpoint bus.Endpoint) error {
	if endpoint == nil {
		return ErrNoEndpoint
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	teardownErr := s.teardownLocked()
	s.endpoint = endpoint

	var bindErr error
	if s.environment != nil {
		bindErr = s.initializeSubscriptionsLocked()
	}

	s.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventEndpointBound,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: "server", Kind: logging.EntityKindEndpoint},
	})
	return errors.Join(teardownErr, bindErr)
}

// BindEnvironment tears down every subscription and rebuilds them against
// the new environment, re-subscribing the properties of every object it
// already contains.
func (s *Server) BindEnvironment(environment *env.Environment) error {
	if environment == nil {
		return ErrNoEnvironment
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	teardownErr := s.teardownLocked()
	s.environment = environment

	var bindErr error
	if s.endpoint != nil {
		bindErr = s.initializeSubscriptionsLocked()
	}

	s.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventEnvironmentBound,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: "server", Kind: logging.EntityKindEnvironment},
	})
	return errors.Join(teardownErr, bindErr)
}

// InitializeObject creates an authoritative object under key and opens one
// subscription per declared property. An empty type hint selects the
// environment's default type. Spawning a key that is already managed
// returns the existing object unchanged, so duplicate spawn notifications
// are harmless.
func (s *Server) InitializeObject(key, typeKey string) (env.Object, error) {
	s.mu.Lock()
	if s.endpoint == nil {
		s.mu.Unlock()
		return nil, ErrNoEndpoint
	}
	if s.environment == nil {
		s.mu.Unlock()
		return nil, ErrNoEnvironment
	}
	if rec, ok := s.objects[key]; ok {
		s.mu.Unlock()
		return rec.object, nil
	}

	environment := s.environment
	existed := environment.Contains(key)
	obj, err := environment.InitializeObject(key, typeKey)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.subscribeObjectLocked(obj); err != nil {
		// Roll the spawn back so absent stays absent on failure, but never
		// remove an object that was in the environment before this call.
		if !existed {
			_ = environment.DeleteObject(key)
		}
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	// The update hook may read server state; fire it with the lock released.
	environment.Update()

	s.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventObjectSpawned,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: key, Kind: logging.EntityKindObject},
	})
	return obj, nil
}

// DestroyObject closes every property subscription for key, removes the
// object from the environment, and signals the change. Destroying an
// unmanaged key returns ErrUnknownObject; a subscription that refuses to
// close is reported as a recoverable error, never a crash, and the object
// is removed regardless.
func (s *Server) DestroyObject(key string) error {
	s.mu.Lock()
	if s.endpoint == nil {
		s.mu.Unlock()
		return ErrNoEndpoint
	}
	if s.environment == nil {
		s.mu.Unlock()
		return ErrNoEnvironment
	}
	rec, ok := s.objects[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownObject, key)
	}

	var errs []error
	if err := rec.closeSubscriptions(); err != nil {
		errs = append(errs, err)
	}
	delete(s.objects, key)
	environment := s.environment
	if err := environment.DeleteObject(key); err != nil {
		errs = append(errs, err)
	}
	s.mu.Unlock()

	// The update hook may read server state; fire it with the lock released.
	environment.Update()

	s.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventObjectDestroyed,
		Severity: logging.SeverityInfo,
		Subject:  logging.EntityRef{ID: key, Kind: logging.EntityKindObject},
	})
	return errors.Join(errs...)
}

// Managed reports whether key currently has an active managed object.
func (s *Server) Managed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// ProcessEvents drains the inbound property event queue, applying each
// event to the authoritative environment, and returns the number applied.
// It runs automatically after every inbound property message; it is exposed
// for hosts that want an explicit pump.
func (s *Server) ProcessEvents() int {
	count := 0
	for {
		select {
		case ev := <-s.events:
			s.applyEvent(ev)
			count++
		default:
			return count
		}
	}
}

// Close tears down every subscription. Safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.teardownLocked()
}

func (s *Server) teardownLocked() error {
	var errs []error
	for topic, sub := range s.lifecycle {
		if err := sub.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			errs = append(errs, fmt.Errorf("close subscription on %q: %w", topic, err))
		}
		delete(s.lifecycle, topic)
	}
	for key, rec := range s.objects {
		if err := rec.closeSubscriptions(); err != nil {
			errs = append(errs, err)
		}
		delete(s.objects, key)
	}
	return errors.Join(errs...)
}

func (s *Server) initializeSubscriptionsLocked() error {
	type lifecycleTopic struct {
		topic   string
		handler func(key string)
	}
	topics := []lifecycleTopic{
		{TopicInitialize, func(key string) {
			if _, err := s.InitializeObject(key, ""); err != nil {
				s.warn(logging.EventPropertyRejected, key, TopicInitialize, err)
			}
		}},
		{TopicDestroy, func(key string) {
			err := s.DestroyObject(key)
			if err != nil && !errors.Is(err, ErrUnknownObject) {
				s.warn(logging.EventPropertyRejected, key, TopicDestroy, err)
			}
		}},
	}

	for _, lt := range topics {
		schema, qos := s.overrides.paramsFor(lt.topic, msg.StringSchema)
		handler := lt.handler
		topic := lt.topic
		sub, err := s.endpoint.CreateSubscription(topic, schema, qos, func(m msg.Message) {
			key, ok := msg.Value(m).(string)
			if !ok {
				s.warn(logging.EventPropertyRejected, "", topic, fmt.Errorf("payload is not an object key"))
				return
			}
			handler(key)
		})
		if err != nil {
			return fmt.Errorf("create subscription on %q: %w", topic, err)
		}
		s.lifecycle[topic] = sub
	}

	// Rebinding re-subscribes the properties of every object already
	// present, so an environment attached mid-flight is fully managed.
	for _, key := range s.environment.Keys() {
		obj, ok := s.environment.Object(key)
		if !ok {
			continue
		}
		if err := s.subscribeObjectLocked(obj); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) subscribeObjectLocked(obj env.Object) error {
	rec := &managedObject{object: obj, subs: make(map[env.Property]bus.Subscription)}
	key := obj.Key()
	for _, p := range obj.Properties() {
		topic := PropertyTopic(key, p)
		schema, qos := s.overrides.paramsFor(topic, schemaForProperty(p))
		property := p
		sub, err := s.endpoint.CreateSubscription(topic, schema, qos, func(m msg.Message) {
			s.enqueue(propertyEvent{key: key, property: property, value: msg.Value(m)})
		})
		if err != nil {
			closeErr := rec.closeSubscriptions()
			return errors.Join(fmt.Errorf("create subscription on %q: %w", topic, err), closeErr)
		}
		rec.subs[p] = sub
	}
	s.objects[key] = rec
	return nil
}

// enqueue hands a decoded property update to the event queue and drains it
// immediately, so mutation still happens within the same dispatch turn while
// the decode callback captures nothing but names.
func (s *Server) enqueue(ev propertyEvent) {
	select {
	case s.events <- ev:
	default:
		s.warn(logging.EventPropertyRejected, ev.key, PropertyTopic(ev.key, ev.property),
			fmt.Errorf("event queue full"))
		return
	}
	s.ProcessEvents()
}

func (s *Server) applyEvent(ev propertyEvent) {
	s.mu.Lock()
	environment := s.environment
	s.mu.Unlock()
	if environment == nil {
		return
	}

	obj, ok := environment.Object(ev.key)
	if !ok {
		s.warn(logging.EventPropertyRejected, ev.key, PropertyTopic(ev.key, ev.property),
			ErrUnknownObject)
		return
	}
	if err := obj.Set(ev.property, ev.value); err != nil {
		s.warn(logging.EventPropertyRejected, ev.key, PropertyTopic(ev.key, ev.property), err)
		return
	}
	environment.Update()

	s.log.Publish(context.Background(), logging.Event{
		Type:     logging.EventPropertyUpdated,
		Severity: logging.SeverityDebug,
		Subject:  logging.EntityRef{ID: ev.key, Kind: logging.EntityKindObject},
		Topic:    PropertyTopic(ev.key, ev.property),
		Payload:  ev.value,
	})
}

func (s *Server) warn(eventType logging.EventType, key, topic string, err error) {
	s.log.Publish(context.Background(), logging.Event{
		Type:     eventType,
		Severity: logging.SeverityWarn,
		Subject:  logging.EntityRef{ID: key, Kind: logging.EntityKindObject},
		Topic:    topic,
		Extra:    map[string]any{"error": err.Error()},
	})
}

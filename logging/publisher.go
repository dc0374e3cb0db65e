// Package logging carries structured bridge events. The bridge emits one
// event per lifecycle transition (spawn, destroy, rebind) and per inbound
// property update; consumers attach sinks through a Router or supply their
// own Publisher.
package logging

import (
	"context"
	"time"
)

type EventType string

const (
	EventObjectSpawned      EventType = "object_spawned"
	EventObjectDestroyed    EventType = "object_destroyed"
	EventPropertyUpdated    EventType = "property_updated"
	EventPropertyRejected   EventType = "property_rejected"
	EventSubscriptionOpened EventType = "subscription_opened"
	EventSubscriptionClosed EventType = "subscription_closed"
	EventPublisherOpened    EventType = "publisher_opened"
	EventPublisherClosed    EventType = "publisher_closed"
	EventEndpointBound      EventType = "endpoint_bound"
	EventEnvironmentBound   EventType = "environment_bound"
)

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type EntityKind string

const (
	EntityKindUnknown     EntityKind = "unknown"
	EntityKindObject      EntityKind = "object"
	EntityKindEnvironment EntityKind = "environment"
	EntityKindEndpoint    EntityKind = "endpoint"
)

// EntityRef names the entity an event is about.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Event is one structured bridge occurrence.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Severity Severity       `json:"severity"`
	Subject  EntityRef      `json:"subject"`
	Topic    string         `json:"topic,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Publisher accepts bridge events. Implementations must tolerate being
// called from the dispatch goroutine and must not block it.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher returns a publisher that discards every event.
func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

// WithFields wraps a publisher so every event carries the given extra
// fields. Fields already present on an event win.
func WithFields(next Publisher, fields map[string]any) Publisher {
	if next == nil || len(fields) == 0 {
		return next
	}
	cloned := make(map[string]any, len(fields))
	for k, v := range fields {
		cloned[k] = v
	}
	return &fieldPublisher{next: next, fields: cloned}
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	extra := make(map[string]any, len(p.fields)+len(event.Extra))
	for k, v := range p.fields {
		extra[k] = v
	}
	for k, v := range event.Extra {
		extra[k] = v
	}
	event.Extra = extra
	p.next.Publish(ctx, event)
}

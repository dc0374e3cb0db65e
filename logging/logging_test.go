package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRouterDeliversToSinks(t *testing.T) {
	sink := NewMemorySink()
	router := NewRouter(DefaultConfig(), sink)

	router.Publish(context.Background(), Event{
		Type:     EventObjectSpawned,
		Severity: SeverityInfo,
		Subject:  EntityRef{ID: "cursor", Kind: EntityKindObject},
	})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventObjectSpawned || events[0].Subject.ID != "cursor" {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if events[0].Time.IsZero() {
		t.Fatalf("expected the router to stamp the event time")
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	sink := NewMemorySink()
	router := NewRouter(Config{BufferSize: 8, MinimumSeverity: SeverityWarn}, sink)

	router.Publish(context.Background(), Event{Type: EventPropertyUpdated, Severity: SeverityDebug})
	router.Publish(context.Background(), Event{Type: EventObjectSpawned, Severity: SeverityInfo})
	router.Publish(context.Background(), Event{Type: EventPropertyRejected, Severity: SeverityWarn})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected only the warn event, got %d", len(events))
	}
	if events[0].Type != EventPropertyRejected {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 counted event, got %d", stats.EventsTotal)
	}
}

func TestRouterDiscardsAfterClose(t *testing.T) {
	sink := NewMemorySink()
	router := NewRouter(DefaultConfig(), sink)

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	router.Publish(context.Background(), Event{Type: EventObjectSpawned, Severity: SeverityInfo})

	if len(sink.Events()) != 0 {
		t.Fatalf("expected no events after close")
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("expected a second close to be a no-op, got %v", err)
	}
}

func TestWithFieldsMergesExtra(t *testing.T) {
	var got Event
	next := PublisherFunc(func(_ context.Context, event Event) { got = event })

	p := WithFields(next, map[string]any{"app": "spheresd", "node": "server"})
	p.Publish(context.Background(), Event{
		Type:  EventPropertyRejected,
		Extra: map[string]any{"node": "client"},
	})

	if got.Extra["app"] != "spheresd" {
		t.Fatalf("expected the wrapped field, got %v", got.Extra)
	}
	if got.Extra["node"] != "client" {
		t.Fatalf("expected the event's own field to win, got %v", got.Extra)
	}
}

func TestZerologSinkRendersEventFields(t *testing.T) {
	var buf strings.Builder
	sink := NewZerologSink(zerolog.New(&buf))

	err := sink.Write(Event{
		Type:     EventPropertyUpdated,
		Severity: SeverityDebug,
		Subject:  EntityRef{ID: "cursor", Kind: EntityKindObject},
		Topic:    "cursor/radius",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	for _, want := range []string{`"level":"debug"`, `"event":"property_updated"`, `"subject":"cursor"`, `"topic":"cursor/radius"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestSeverityString(t *testing.T) {
	cases := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarn, "warn"},
		{SeverityError, "error"},
		{Severity(42), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.severity.String(); got != tc.want {
			t.Fatalf("severity %d: expected %q, got %q", tc.severity, tc.want, got)
		}
	}
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// ConsoleSink writes events through a stdlib logger, one line per event.
type ConsoleSink struct {
	logger *log.Logger
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags)}
}

func (s *ConsoleSink) Write(event Event) error {
	if s.logger == nil {
		return nil
	}
	topic := ""
	if event.Topic != "" {
		topic = fmt.Sprintf(" topic=%s", event.Topic)
	}
	s.logger.Printf("[%s] subject=%s kind=%s severity=%s%s",
		event.Type, event.Subject.ID, event.Subject.Kind, event.Severity, topic)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error { return nil }

// MemorySink retains events in memory. Intended for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Close(context.Context) error { return nil }

// Events returns a copy of the retained events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// ZerologSink renders events through a zerolog logger.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Write(event Event) error {
	entry := s.logger.WithLevel(zerologLevel(event.Severity)).
		Str("event", string(event.Type)).
		Str("subject", event.Subject.ID).
		Str("kind", string(event.Subject.Kind))
	if event.Topic != "" {
		entry = entry.Str("topic", event.Topic)
	}
	if event.Payload != nil {
		entry = entry.Interface("payload", event.Payload)
	}
	for k, v := range event.Extra {
		entry = entry.Interface(k, v)
	}
	entry.Send()
	return nil
}

func (s *ZerologSink) Close(context.Context) error { return nil }

func zerologLevel(severity Severity) zerolog.Level {
	switch severity {
	case SeverityDebug:
		return zerolog.DebugLevel
	case SeverityInfo:
		return zerolog.InfoLevel
	case SeverityWarn:
		return zerolog.WarnLevel
	case SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

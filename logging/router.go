package logging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives events from a Router.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Config adjusts router behaviour.
type Config struct {
	BufferSize      int
	MinimumSeverity Severity
}

// DefaultConfig returns the router defaults: a 256-event buffer at info
// severity.
func DefaultConfig() Config {
	return Config{BufferSize: 256, MinimumSeverity: SeverityInfo}
}

// RouterStats counts the events a router has seen.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// Router fans events out to sinks from a single dispatch goroutine.
// Publish never blocks; events beyond the buffer are dropped and counted.
type Router struct {
	queue       chan Event
	sinks       []Sink
	minSeverity Severity
	closed      atomic.Bool
	done        chan struct{}
	wg          sync.WaitGroup

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
}

// NewRouter starts a router delivering to the given sinks.
func NewRouter(cfg Config, sinks ...Sink) *Router {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &Router{
		queue:       make(chan Event, bufferSize),
		sinks:       sinks,
		minSeverity: cfg.MinimumSeverity,
		done:        make(chan struct{}),
	}
	r.wg.Add(1)
	go r.dispatch()
	return r
}

// Publish enqueues an event for delivery. Events below the minimum
// severity, or arriving after Close, are discarded.
func (r *Router) Publish(_ context.Context, event Event) {
	if r.closed.Load() || event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	default:
		r.droppedTotal.Add(1)
	}
}

// Stats returns a snapshot of the router counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Close drains queued events and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if r.closed.Swap(true) {
		return nil
	}
	close(r.done)
	r.wg.Wait()
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.queue:
			r.write(event)
		case <-r.done:
			for {
				select {
				case event := <-r.queue:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) write(event Event) {
	for _, sink := range r.sinks {
		// Sink failures are not propagated; the bridge must never stall on
		// observability.
		_ = sink.Write(event)
	}
}

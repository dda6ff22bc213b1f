package telemetry

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrQueueFull is returned by Async.Publish when the queue is full.
var ErrQueueFull = errors.New("telemetry: queue full")

// Publisher sends telemetry events.
type Publisher interface {
	Publish(ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) error { return nil }

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of the given type were recorded.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type() == eventType {
			n++
		}
	}
	return n
}

// Async publishes on a background goroutine through a bounded queue, so
// callers on the render path never wait on the network. Events are dropped
// when the queue is full.
type Async struct {
	next  Publisher
	queue chan Event
	done  chan struct{}
	once  sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsync starts the publishing goroutine.
func NewAsync(next Publisher, depth int) *Async {
	if depth <= 0 {
		depth = 64
	}
	a := &Async{
		next:  next,
		queue: make(chan Event, depth),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues ev without blocking.
func (a *Async) Publish(ev Event) error {
	select {
	case a.queue <- ev:
		return nil
	default:
		if a.dropped.Add(1)%100 == 1 {
			slog.Warn("telemetry: queue full, dropping events", "type", ev.Type(), "dropped", a.dropped.Load())
		}
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		if err := a.next.Publish(ev); err != nil {
			a.failed.Add(1)
			slog.Debug("telemetry: publish failed", "type", ev.Type(), "error", err)
		}
	}
}

// Close drains the queue and stops the goroutine. Publish must not be called
// after Close.
func (a *Async) Close() {
	a.once.Do(func() { close(a.queue) })
	<-a.done
}

// Dropped returns how many events were dropped on a full queue.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Failed returns how many events the underlying publisher rejected.
func (a *Async) Failed() uint64 { return a.failed.Load() }

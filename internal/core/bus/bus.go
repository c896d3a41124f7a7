// Package bus provides the hub's in-process publish/subscribe event bus.
//
// Listeners never run on the firing goroutine: Fire schedules one loop job per
// matching listener, so a listener always observes a fully constructed event
// and may freely touch loop-confined state.
package bus

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
)

// EventType names a kind of event. Packages that fire events own their types.
type EventType string

// Event is a fired event. It is immutable once fired.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"event_type"`
	Data      map[string]any `json:"data"`
	TimeFired time.Time      `json:"time_fired"`
}

// Handler receives events on the loop goroutine.
type Handler func(ctx context.Context, e Event)

// Scheduler is the subset of the loop the bus needs.
type Scheduler interface {
	Submit(job loop.Job)
}

type listener struct {
	id      uint64
	handler Handler
}

// Bus delivers fired events to registered listeners.
//
// Thread Safety:
//   - All methods are safe for concurrent use; handlers run on the loop.
type Bus struct {
	sched Scheduler

	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType][]listener
	catchAll  []listener
}

// New creates a bus that schedules delivery on sched.
func New(sched Scheduler) *Bus {
	return &Bus{
		sched:     sched,
		listeners: make(map[EventType][]listener),
	}
}

// Listen registers handler for events of type t.
// The returned function removes the listener.
func (b *Bus) Listen(t EventType, handler Handler) (remove func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[t] = append(b.listeners[t], listener{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listeners[t] = without(b.listeners[t], id)
		if len(b.listeners[t]) == 0 {
			delete(b.listeners, t)
		}
	}
}

// ListenAll registers handler for every event type.
func (b *Bus) ListenAll(handler Handler) (remove func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.catchAll = append(b.catchAll, listener{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.catchAll = without(b.catchAll, id)
	}
}

// Fire publishes an event and schedules every matching listener.
//
// Data is copied, so later changes to the caller's map are not observed by
// listeners. Fire returns the event as it will be delivered.
func (b *Bus) Fire(t EventType, data map[string]any) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      maps.Clone(data),
		TimeFired: time.Now().UTC(),
	}
	if event.Data == nil {
		event.Data = map[string]any{}
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.listeners[t])+len(b.catchAll))
	for _, l := range b.listeners[t] {
		targets = append(targets, l.handler)
	}
	for _, l := range b.catchAll {
		targets = append(targets, l.handler)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		b.sched.Submit(func(ctx context.Context) {
			h(ctx, event)
		})
	}

	return event
}

// ListenerCount returns the number of listeners for t, excluding catch-all listeners.
func (b *Bus) ListenerCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}

func without(ls []listener, id uint64) []listener {
	out := ls[:0:0]
	for _, l := range ls {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}

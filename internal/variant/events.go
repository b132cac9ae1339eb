package variant

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType identifies a variant lifecycle event.
type EventType string

const (
	EventVariantCreated EventType = "variant:created"
	EventVariantRemoved EventType = "variant:removed"
	EventVariantUpdated EventType = "variant:updated"

	EventPreviewStarting EventType = "preview:starting"
	EventPreviewReady    EventType = "preview:ready"
	EventPreviewFailed   EventType = "preview:failed"
	EventPreviewStopped  EventType = "preview:stopped"
)

// Event is one lifecycle notification from the variant manager.
type Event struct {
	Type      EventType
	VariantID string
	Port      int
	Message   string
	Time      time.Time
}

// EventEmitter delivers lifecycle events to a subscriber channel.
// Emission never blocks the manager for long: a full channel gets a
// short grace period, then the event is dropped and counted.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the channel, dropping it if the subscriber
// cannot drain within 100ms.
func (e *EventEmitter) Emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[variant] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only subscriber channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the event channel. Call only after the manager is done
// emitting.
func (e *EventEmitter) Close() {
	close(e.events)
}

// Package events provides the in-process event bus used for job progress
// reporting. Jobs publish lifecycle events; the ops server streams them to
// connected clients.
package events

import (
	"sync"
	"time"
)

// EventType identifies an event kind
type EventType string

const (
	// JobStarted - a batch job began executing
	JobStarted EventType = "job_started"
	// JobProgress - a batch job reported stage progress
	JobProgress EventType = "job_progress"
	// JobCompleted - a batch job finished successfully
	JobCompleted EventType = "job_completed"
	// JobFailed - a batch job aborted with an error
	JobFailed EventType = "job_failed"
	// ArtifactWritten - a durable artifact was published to the object store
	ArtifactWritten EventType = "artifact_written"
)

// Event is a single bus message
type Event struct {
	Type      EventType              `json:"type"`
	Module    string                 `json:"module"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Bus fans events out to subscribers. Publishing never blocks: a slow
// subscriber drops events rather than stalling a job.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Emit publishes an event to all subscribers
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Subscriber is slow; drop rather than block the job
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

package jobs

import (
	"sync"
	"time"

	"subtitle-studio/internal/domain"
)

// EventType classifies messages pushed from the pipeline to the UI.
type EventType string

const (
	EventTypeCue                  EventType = "cue"
	EventTypeDiagnostic           EventType = "diagnostic"
	EventTypeStreamEnded          EventType = "stream-ended"
	EventTypeTranslationCompleted EventType = "translation-completed"
	EventTypeTranslationFailed    EventType = "translation-failed"
	EventTypeStatus               EventType = "status"
	EventTypeCollection           EventType = "collection"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq         int64                `json:"seq"`
	Timestamp   time.Time            `json:"timestamp"`
	SessionID   string               `json:"sessionId,omitempty"`
	Type        EventType            `json:"type"`
	Status      domain.SessionStatus `json:"status,omitempty"`
	Message     string               `json:"message,omitempty"`
	Cue         *domain.Cue          `json:"cue,omitempty"`
	Cues        []domain.Cue         `json:"cues,omitempty"`
	CueID       string               `json:"cueId,omitempty"`
	Translation string               `json:"translation,omitempty"`
	ExitCode    int                  `json:"exitCode,omitempty"`
	Command     string               `json:"command,omitempty"`
	Args        []string             `json:"args,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 1000
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence of the most recently published event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

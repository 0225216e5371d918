package testutil

import (
	"context"
	"sync"

	"finlink/internal/services"
)

// RecordingNotifier captures published events for assertions.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []services.LinkEvent
}

// NewRecordingNotifier creates an event recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Publish implements services.Notifier.
func (n *RecordingNotifier) Publish(_ context.Context, event services.LinkEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns a copy of the captured events.
func (n *RecordingNotifier) Events() []services.LinkEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]services.LinkEvent, len(n.events))
	copy(out, n.events)
	return out
}

// EventsOfType returns captured events matching the given type.
func (n *RecordingNotifier) EventsOfType(eventType services.LinkEventType) []services.LinkEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []services.LinkEvent
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

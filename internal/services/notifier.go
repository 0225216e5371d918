package services

import (
	"context"
	"log/slog"
	"time"
)

// LinkEventType enumerates the audit events emitted by the engine.
type LinkEventType string

const (
	EventSessionStarted        LinkEventType = "session_started"
	EventMfaFailed             LinkEventType = "mfa_failed"
	EventVerificationFailed    LinkEventType = "verification_failed"
	EventConnectionEstablished LinkEventType = "connection_established"
	EventConnectionFailed      LinkEventType = "connection_failed"
)

// LinkEvent is one fire-and-forget audit event.
type LinkEvent struct {
	Type         LinkEventType     `json:"type"`
	UserID       string            `json:"user_id"`
	SessionToken string            `json:"session_token"`
	Detail       map[string]string `json:"detail,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Notifier receives audit events. Delivery failures must never fail the
// transition that produced the event; Publish therefore returns nothing.
type Notifier interface {
	Publish(ctx context.Context, event LinkEvent)
}

// logNotifier writes events to the structured log. The default sink when
// no external audit pipeline is wired.
type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Publish(_ context.Context, event LinkEvent) {
	attrs := []any{
		"event", string(event.Type),
		"user_id", event.UserID,
		"session_token", event.SessionToken,
	}
	for key, value := range event.Detail {
		attrs = append(attrs, key, value)
	}
	n.logger.Info("link event", attrs...)
}

// asyncNotifier decouples event delivery from the request path with a
// buffered channel. Events are dropped, with a log line, when the buffer
// is full; audit delivery never backpressures a transition.
type asyncNotifier struct {
	inner  Notifier
	events chan LinkEvent
	logger *slog.Logger
}

// NewAsyncNotifier wraps a notifier with asynchronous delivery. The
// dispatch goroutine stops when ctx ends.
func NewAsyncNotifier(ctx context.Context, inner Notifier, buffer int, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	n := &asyncNotifier{
		inner:  inner,
		events: make(chan LinkEvent, buffer),
		logger: logger,
	}
	go n.dispatch(ctx)
	return n
}

func (n *asyncNotifier) Publish(_ context.Context, event LinkEvent) {
	select {
	case n.events <- event:
	default:
		n.logger.Warn("dropping link event, notifier buffer full",
			"event", string(event.Type), "session_token", event.SessionToken)
	}
}

func (n *asyncNotifier) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.events:
			n.inner.Publish(ctx, event)
		}
	}
}

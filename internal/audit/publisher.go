package audit

import (
	"context"
	"log/slog"

	"contactlink/pkg/requestcontext"
)

// Store receives audit events. Implementations are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. Emission never fails the
// request: a full queue drops the event with a warning instead of blocking
// the identify path.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher constructs a Publisher with a buffered inbox drained by a
// Worker.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan Event, buffer), logger: logger}
}

// Emit enqueues an event, stamping the request-scoped time and correlation ID
// from the context.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", string(event.Action),
			"contact_id", event.ContactID,
		)
	}
}

// Inbox exposes the receive side for the Worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

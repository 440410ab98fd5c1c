package audit

import (
	"context"
	"log/slog"
)

// Worker drains the publisher inbox and persists events. A failing store does
// not stop the worker; the event is logged and dropped so audit trouble never
// backs up into request handling.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", string(event.Action),
					"contact_id", event.ContactID,
					"error", err.Error(),
				)
			}
		}
	}
}

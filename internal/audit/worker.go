package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and persists them, keeping the
// event write off the request path. A store failure is logged, not fatal;
// losing an audit row must never stop the gate.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action, "submission_id", event.SubmissionID, "error", err)
			}
		}
	}
}

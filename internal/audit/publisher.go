package audit

import (
	"context"
	"log/slog"

	id "garita/pkg/domain"
	"garita/pkg/requestcontext"
)

// Store persists audit events. Append-only; there is no update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. Operator and
// device default from the request context when the caller leaves them empty.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	return p.store.Append(ctx, withDefaults(ctx, base))
}

func (p *Publisher) List(ctx context.Context, submissionID id.SubmissionID) ([]Event, error) {
	return p.store.ListBySubmission(ctx, submissionID)
}

// AsyncPublisher queues events for a background Worker instead of writing
// inline, keeping the audit write off the step path. A full queue drops the
// event with a warning rather than stalling the gate.
type AsyncPublisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewAsyncPublisher(inbox chan<- Event, logger *slog.Logger) *AsyncPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncPublisher{inbox: inbox, logger: logger}
}

func (p *AsyncPublisher) Emit(ctx context.Context, base Event) error {
	event := withDefaults(ctx, base)
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit queue full, dropping event",
			"action", event.Action, "submission_id", event.SubmissionID)
	}
	return nil
}

func withDefaults(ctx context.Context, base Event) Event {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.Operator == "" {
		base.Operator = requestcontext.Operator(ctx)
	}
	if base.Device == "" {
		base.Device = requestcontext.DeviceName(ctx)
	}
	return base
}

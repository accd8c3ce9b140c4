package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "garita/pkg/domain"
)

// PostgresStore persists events in the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	const q = `
		INSERT INTO audit_events (id, occurred_at, submission_id, operator, device, action, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var submissionID any
	if !event.SubmissionID.IsNil() {
		submissionID = event.SubmissionID.String()
	}
	_, err := s.db.ExecContext(ctx, q,
		uuid.NewString(), event.Timestamp, submissionID,
		event.Operator, event.Device, string(event.Action), event.Detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]Event, error) {
	const q = `
		SELECT occurred_at, operator, device, action, detail
		FROM audit_events
		WHERE submission_id = $1
		ORDER BY occurred_at`

	rows, err := s.db.QueryContext(ctx, q, submissionID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e := Event{SubmissionID: submissionID}
		var action string
		if err := rows.Scan(&e.Timestamp, &e.Operator, &e.Device, &action, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		events = append(events, e)
	}
	return events, rows.Err()
}

package audit

import (
	"time"

	id "garita/pkg/domain"
)

// Action names a recorded gate activity.
type Action string

const (
	ActionSubmissionStarted   Action = "submission_started"
	ActionAnswerSaved         Action = "answer_saved"
	ActionAnswersTruncated    Action = "answers_truncated"
	ActionSubmissionFinalized Action = "submission_finalized"
	ActionFieldVerified       Action = "field_verified"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp    time.Time
	SubmissionID id.SubmissionID
	Operator     string
	Device       string
	Action       Action
	Detail       string
}

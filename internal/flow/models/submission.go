package models

import (
	"time"

	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

// Phase identifies which gate event a submission records.
type Phase string

const (
	PhaseEntrada    Phase = "entrada"
	PhaseSalida     Phase = "salida"
	PhaseInspeccion Phase = "inspeccion"
)

func (p Phase) IsValid() bool {
	switch p {
	case PhaseEntrada, PhaseSalida, PhaseInspeccion:
		return true
	}
	return false
}

// Submission is one filled-in instance of a questionnaire for one phase of a
// vehicle visit.
//
// Invariants:
//   - Once Finalized is true no answer may be created or mutated and no
//     denormalized field may change.
//   - Denormalized fields (plate, container, seal, actor refs) mirror the
//     latest answer for the matching semantic tag; they exist so list views
//     never need an answer join.
type Submission struct {
	ID              id.SubmissionID    `json:"id"`
	QuestionnaireID id.QuestionnaireID `json:"questionnaire_id"`
	Phase           Phase              `json:"phase"`

	Plate     string `json:"plate,omitempty"`
	Container string `json:"container,omitempty"`
	Seal      string `json:"seal,omitempty"`

	ProviderID    *id.ActorID `json:"provider_id,omitempty"`
	TransporterID *id.ActorID `json:"transporter_id,omitempty"`
	ReceiverID    *id.ActorID `json:"receiver_id,omitempty"`
	RegulatorID   *id.ActorID `json:"regulator_id,omitempty"`

	Finalized bool       `json:"finalized"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewSubmission constructs a draft submission.
func NewSubmission(sid id.SubmissionID, questionnaireID id.QuestionnaireID, phase Phase, now time.Time) (*Submission, error) {
	if questionnaireID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "submission requires a questionnaire")
	}
	if !phase.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown phase %q", phase)
	}
	return &Submission{
		ID:              sid,
		QuestionnaireID: questionnaireID,
		Phase:           phase,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Finalize returns a closed copy of the submission. The receiver is not
// mutated; an already-finalized submission is rejected.
func Finalize(s Submission, now time.Time) (Submission, error) {
	if s.Finalized {
		return Submission{}, dErrors.New(dErrors.CodeFinalizedSubmission, "submission is already finalized")
	}
	closed := s
	closed.Finalized = true
	closed.ClosedAt = &now
	closed.UpdatedAt = now
	return closed, nil
}

// Package domain defines typed identifiers shared across modules.
//
// Each ID is a distinct type over uuid.UUID so a SubmissionID can never be
// passed where a QuestionID is expected. Parse helpers validate at the edge;
// interior code works with the typed values only.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type (
	QuestionnaireID uuid.UUID
	QuestionID      uuid.UUID
	ChoiceID        uuid.UUID
	SubmissionID    uuid.UUID
	AnswerID        uuid.UUID
	ActorID         uuid.UUID
)

func NewQuestionnaireID() QuestionnaireID { return QuestionnaireID(uuid.New()) }
func NewQuestionID() QuestionID           { return QuestionID(uuid.New()) }
func NewChoiceID() ChoiceID               { return ChoiceID(uuid.New()) }
func NewSubmissionID() SubmissionID       { return SubmissionID(uuid.New()) }
func NewAnswerID() AnswerID               { return AnswerID(uuid.New()) }
func NewActorID() ActorID                 { return ActorID(uuid.New()) }

func (id QuestionnaireID) String() string { return uuid.UUID(id).String() }
func (id QuestionID) String() string      { return uuid.UUID(id).String() }
func (id ChoiceID) String() string        { return uuid.UUID(id).String() }
func (id SubmissionID) String() string    { return uuid.UUID(id).String() }
func (id AnswerID) String() string        { return uuid.UUID(id).String() }
func (id ActorID) String() string         { return uuid.UUID(id).String() }

func (id QuestionnaireID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id QuestionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ChoiceID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AnswerID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// ParseQuestionnaireID validates and returns a QuestionnaireID.
func ParseQuestionnaireID(s string) (QuestionnaireID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return QuestionnaireID{}, fmt.Errorf("invalid questionnaire id %q: %w", s, err)
	}
	return QuestionnaireID(u), nil
}

// ParseQuestionID validates and returns a QuestionID.
func ParseQuestionID(s string) (QuestionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return QuestionID{}, fmt.Errorf("invalid question id %q: %w", s, err)
	}
	return QuestionID(u), nil
}

// ParseChoiceID validates and returns a ChoiceID.
func ParseChoiceID(s string) (ChoiceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ChoiceID{}, fmt.Errorf("invalid choice id %q: %w", s, err)
	}
	return ChoiceID(u), nil
}

// ParseSubmissionID validates and returns a SubmissionID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SubmissionID{}, fmt.Errorf("invalid submission id %q: %w", s, err)
	}
	return SubmissionID(u), nil
}

// ParseAnswerID validates and returns an AnswerID.
func ParseAnswerID(s string) (AnswerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AnswerID{}, fmt.Errorf("invalid answer id %q: %w", s, err)
	}
	return AnswerID(u), nil
}

// ParseActorID validates and returns an ActorID.
func ParseActorID(s string) (ActorID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ActorID{}, fmt.Errorf("invalid actor id %q: %w", s, err)
	}
	return ActorID(u), nil
}

// IDs marshal as UUID strings on the wire.

func (id QuestionnaireID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id QuestionID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ChoiceID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id SubmissionID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id AnswerID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }

func (id *QuestionnaireID) UnmarshalText(b []byte) error {
	parsed, err := ParseQuestionnaireID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *QuestionID) UnmarshalText(b []byte) error {
	parsed, err := ParseQuestionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ChoiceID) UnmarshalText(b []byte) error {
	parsed, err := ParseChoiceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AnswerID) UnmarshalText(b []byte) error {
	parsed, err := ParseAnswerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

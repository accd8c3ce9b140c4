// Package store defines the persistence ports of the flow module and their
// in-memory and PostgreSQL implementations. The flow engine never references
// a concrete storage technology; it sees these interfaces only.
package store

import (
	"context"

	"garita/internal/flow/models"
	id "garita/pkg/domain"
)

// SubmissionStore persists submissions. FindByID returns
// sentinel.ErrNotFound for unknown ids; Save upserts by id.
type SubmissionStore interface {
	FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	Save(ctx context.Context, submission *models.Submission) error
}

// AnswerStore persists answers, one logical answer per
// (submission, question) pair.
type AnswerStore interface {
	FindBySubmissionAndQuestion(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID) (*models.Answer, error)
	ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]models.Answer, error)
	Save(ctx context.Context, answer *models.Answer) error
	DeleteByIDs(ctx context.Context, answerIDs []id.AnswerID) error
}

// QuestionnaireStore reads questionnaire metadata.
type QuestionnaireStore interface {
	FindByID(ctx context.Context, questionnaireID id.QuestionnaireID) (*models.Questionnaire, error)
}

// QuestionStore lists a questionnaire's questions with their choices, in
// catalog order.
type QuestionStore interface {
	ListQuestions(ctx context.Context, questionnaireID id.QuestionnaireID) ([]models.Question, error)
}

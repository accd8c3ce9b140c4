// Package ledger enforces the answer bookkeeping rules: one answer per
// (submission, question), immutability after finalization, and order-bounded
// truncation of downstream answers when an earlier answer is revised.
package ledger

import (
	"context"
	"errors"
	"sort"

	"garita/internal/flow/graph"
	"garita/internal/flow/models"
	"garita/internal/flow/store"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/sentinel"
)

// Ledger owns all answer mutations. Callers run it inside the flow
// transaction boundary so an upsert and its truncation commit together.
type Ledger struct {
	answers store.AnswerStore
}

func New(answers store.AnswerStore) *Ledger {
	return &Ledger{answers: answers}
}

// Upsert replaces any existing answer for the (submission, question) pair.
// The returned string is the file path the upsert displaced, empty when none;
// the caller deletes that blob only after the transaction commits.
func (l *Ledger) Upsert(ctx context.Context, sub *models.Submission, draft models.Answer) (models.Answer, string, error) {
	if sub.Finalized {
		return models.Answer{}, "", dErrors.Newf(dErrors.CodeFinalizedSubmission,
			"submission %s is finalized", sub.ID)
	}

	var displaced string
	existing, err := l.answers.FindBySubmissionAndQuestion(ctx, sub.ID, draft.QuestionID)
	switch {
	case err == nil:
		draft.ID = existing.ID
		if existing.FilePath != "" && existing.FilePath != draft.FilePath {
			displaced = existing.FilePath
		}
	case errors.Is(err, sentinel.ErrNotFound):
		if draft.ID.IsNil() {
			draft.ID = id.NewAnswerID()
		}
	default:
		return models.Answer{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing answer")
	}

	if err := l.answers.Save(ctx, &draft); err != nil {
		return models.Answer{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save answer")
	}
	return draft, displaced, nil
}

// ExistingRows returns the provider rows already saved for the question,
// empty when it has no answer yet. Rows saved by older builds live only in
// the serialized text value, so that is the fallback.
func (l *Ledger) ExistingRows(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID) ([]models.ProviderRow, error) {
	existing, err := l.answers.FindBySubmissionAndQuestion(ctx, submissionID, questionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing answer")
	}
	if len(existing.Rows) > 0 {
		return existing.Rows, nil
	}
	rows, err := models.DecodeProviderRows(existing.Text)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode provider rows")
	}
	return rows, nil
}

// TruncateAfter deletes every answer whose question order is strictly greater
// than fromOrder. Order is a safe upper bound under branching: it may delete
// more than the taken path strictly needs, but never leaves an orphan from an
// abandoned branch. Returns the deleted answers so the caller can clean up
// their files and audit the deletion.
func (l *Ledger) TruncateAfter(ctx context.Context, g *graph.Graph, submissionID id.SubmissionID, fromOrder int) ([]models.Answer, error) {
	answers, err := l.answers.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list answers")
	}

	var (
		doomed []models.Answer
		ids    []id.AnswerID
	)
	for _, a := range answers {
		q, err := g.Question(a.QuestionID)
		if err != nil {
			// Answer for a question no longer in the questionnaire; the
			// revision invalidated it just as surely as a downstream one.
			doomed = append(doomed, a)
			ids = append(ids, a.ID)
			continue
		}
		if q.Order > fromOrder {
			doomed = append(doomed, a)
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := l.answers.DeleteByIDs(ctx, ids); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to truncate answers")
	}
	return doomed, nil
}

// ListBySubmission returns the submission's answers sorted by question order.
func (l *Ledger) ListBySubmission(ctx context.Context, g *graph.Graph, submissionID id.SubmissionID) ([]models.Answer, error) {
	answers, err := l.answers.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list answers")
	}
	orderOf := func(a models.Answer) int {
		q, err := g.Question(a.QuestionID)
		if err != nil {
			return int(^uint(0) >> 1) // unknown questions sort last
		}
		return q.Order
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return orderOf(answers[i]) < orderOf(answers[j])
	})
	return answers, nil
}

// Package graph provides a read-only traversal view over a questionnaire's
// questions and choices: default next-by-order stepping with per-choice
// branch overrides.
package graph

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"garita/internal/flow/models"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

// Graph is an immutable snapshot of one questionnaire's questions, safe to
// share across concurrent requests.
type Graph struct {
	questionnaireID id.QuestionnaireID
	ordered         []models.Question
	byID            map[id.QuestionID]models.Question
}

// Build validates and indexes the question set. Branch targets must resolve
// within the same questionnaire.
func Build(questionnaireID id.QuestionnaireID, questions []models.Question) (*Graph, error) {
	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)

	// Order is unique by invariant; duplicate orders are tolerated with a
	// deterministic lower-id tie-break so a corrupt catalog cannot make
	// traversal flap between runs.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return lessQuestionID(ordered[i].ID, ordered[j].ID)
	})

	byID := make(map[id.QuestionID]models.Question, len(ordered))
	for _, q := range ordered {
		if q.QuestionnaireID != questionnaireID {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"question %s belongs to questionnaire %s, not %s", q.ID, q.QuestionnaireID, questionnaireID)
		}
		byID[q.ID] = q
	}

	for _, q := range ordered {
		for _, c := range q.Choices {
			if c.BranchTo == nil {
				continue
			}
			if _, ok := byID[*c.BranchTo]; !ok {
				return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
					"choice %s branches to question %s outside questionnaire %s", c.ID, c.BranchTo, questionnaireID)
			}
		}
	}

	return &Graph{questionnaireID: questionnaireID, ordered: ordered, byID: byID}, nil
}

// First returns the lowest-order question.
func (g *Graph) First() (models.Question, error) {
	if len(g.ordered) == 0 {
		return models.Question{}, dErrors.Newf(dErrors.CodeNotFound,
			"questionnaire %s has no questions", g.questionnaireID)
	}
	return g.ordered[0], nil
}

// Question looks up a question by id.
func (g *Graph) Question(questionID id.QuestionID) (models.Question, error) {
	q, ok := g.byID[questionID]
	if !ok {
		return models.Question{}, dErrors.Newf(dErrors.CodeNotFound,
			"question %s not found in questionnaire %s", questionID, g.questionnaireID)
	}
	return q, nil
}

// Next resolves the question that follows current. A selected choice with a
// branch target always wins over default order; otherwise the question with
// the smallest order strictly greater than current's order is returned. The
// second return value is false when the path is exhausted.
func (g *Graph) Next(currentID id.QuestionID, selectedChoice id.ChoiceID) (models.Question, bool, error) {
	current, err := g.Question(currentID)
	if err != nil {
		return models.Question{}, false, err
	}

	if current.Kind == models.QuestionKindChoice && !selectedChoice.IsNil() {
		choice, err := current.ChoiceByID(selectedChoice)
		if err != nil {
			return models.Question{}, false, err
		}
		if choice.BranchTo != nil {
			target := g.byID[*choice.BranchTo] // validated by Build
			return target, true, nil
		}
	}

	for _, q := range g.ordered {
		if q.Order > current.Order {
			return q, true, nil
		}
	}
	return models.Question{}, false, nil
}

// Len returns the number of questions in the graph.
func (g *Graph) Len() int { return len(g.ordered) }

func lessQuestionID(a, b id.QuestionID) bool {
	au, bu := uuid.UUID(a), uuid.UUID(b)
	return bytes.Compare(au[:], bu[:]) < 0
}

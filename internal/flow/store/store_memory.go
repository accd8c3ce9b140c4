package store

import (
	"context"
	"sync"

	"garita/internal/flow/models"
	id "garita/pkg/domain"
	"garita/pkg/platform/sentinel"
)

// In-memory stores back unit tests and the development mode of the server.
// Per-step atomicity comes from the flow service's in-memory StoreTx, not
// from these stores.

// InMemorySubmissions implements SubmissionStore over a map.
type InMemorySubmissions struct {
	mu          sync.RWMutex
	submissions map[id.SubmissionID]models.Submission
}

func NewInMemorySubmissions() *InMemorySubmissions {
	return &InMemorySubmissions{submissions: make(map[id.SubmissionID]models.Submission)}
}

func (s *InMemorySubmissions) FindByID(_ context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := sub
	return &copied, nil
}

func (s *InMemorySubmissions) Save(_ context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.ID] = *submission
	return nil
}

// InMemoryAnswers implements AnswerStore over a map.
type InMemoryAnswers struct {
	mu      sync.RWMutex
	answers map[id.AnswerID]models.Answer
}

func NewInMemoryAnswers() *InMemoryAnswers {
	return &InMemoryAnswers{answers: make(map[id.AnswerID]models.Answer)}
}

func (s *InMemoryAnswers) FindBySubmissionAndQuestion(_ context.Context, submissionID id.SubmissionID, questionID id.QuestionID) (*models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.answers {
		if a.SubmissionID == submissionID && a.QuestionID == questionID {
			copied := a
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryAnswers) ListBySubmission(_ context.Context, submissionID id.SubmissionID) ([]models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Answer
	for _, a := range s.answers {
		if a.SubmissionID == submissionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *InMemoryAnswers) Save(_ context.Context, answer *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answer.ID] = *answer
	return nil
}

func (s *InMemoryAnswers) DeleteByIDs(_ context.Context, answerIDs []id.AnswerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, aid := range answerIDs {
		delete(s.answers, aid)
	}
	return nil
}

// InMemoryQuestionnaires implements QuestionnaireStore and QuestionStore
// over maps seeded at startup.
type InMemoryQuestionnaires struct {
	mu             sync.RWMutex
	questionnaires map[id.QuestionnaireID]models.Questionnaire
	questions      map[id.QuestionnaireID][]models.Question
}

func NewInMemoryQuestionnaires() *InMemoryQuestionnaires {
	return &InMemoryQuestionnaires{
		questionnaires: make(map[id.QuestionnaireID]models.Questionnaire),
		questions:      make(map[id.QuestionnaireID][]models.Question),
	}
}

func (s *InMemoryQuestionnaires) FindByID(_ context.Context, questionnaireID id.QuestionnaireID) (*models.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qn, ok := s.questionnaires[questionnaireID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := qn
	return &copied, nil
}

func (s *InMemoryQuestionnaires) ListQuestions(_ context.Context, questionnaireID id.QuestionnaireID) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions := s.questions[questionnaireID]
	out := make([]models.Question, len(questions))
	copy(out, questions)
	return out, nil
}

// Seed loads a questionnaire and its questions, for tests and development
// seeding.
func (s *InMemoryQuestionnaires) Seed(qn models.Questionnaire, questions []models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[qn.ID] = qn
	s.questions[qn.ID] = append([]models.Question(nil), questions...)
}

package flow

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the main test context these steps need.
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	LastStatus() int
	GetResponseField(field string) (interface{}, error)
	GetQuestionnaireID() string
	GetSubmissionID() string
	SetSubmissionID(id string)
	GetQuestionID() string
	SetQuestionID(id string)
}

// RegisterSteps registers questionnaire flow step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &flowSteps{tc: tc}

	ctx.Step(`^I start a submission in phase "([^"]*)"$`, steps.startSubmission)
	ctx.Step(`^I save the submission and first question$`, steps.saveSubmissionAndQuestion)
	ctx.Step(`^I answer the current question with text "([^"]*)"$`, steps.answerWithText)
	ctx.Step(`^I answer question "([^"]*)" with text "([^"]*)"$`, steps.answerQuestionWithText)
	ctx.Step(`^I finalize the submission$`, steps.finalizeSubmission)
	ctx.Step(`^I resume the submission$`, steps.resumeSubmission)
	ctx.Step(`^I resume submission "([^"]*)"$`, steps.resumeSubmissionByID)
}

type flowSteps struct {
	tc TestContext
}

func (s *flowSteps) startSubmission(ctx context.Context, phase string) error {
	return s.tc.POST("/flow/submissions", map[string]interface{}{
		"questionnaire_id": s.tc.GetQuestionnaireID(),
		"phase":            phase,
	})
}

func (s *flowSteps) saveSubmissionAndQuestion(ctx context.Context) error {
	submissionID, err := s.tc.GetResponseField("submission.id")
	if err != nil {
		return err
	}
	s.tc.SetSubmissionID(submissionID.(string))

	questionID, err := s.tc.GetResponseField("first_question.id")
	if err != nil {
		return err
	}
	s.tc.SetQuestionID(questionID.(string))
	return nil
}

func (s *flowSteps) answerWithText(ctx context.Context, text string) error {
	return s.answerQuestionWithText(ctx, s.tc.GetQuestionID(), text)
}

func (s *flowSteps) answerQuestionWithText(ctx context.Context, questionID, text string) error {
	path := fmt.Sprintf("/flow/submissions/%s/steps", s.tc.GetSubmissionID())
	if err := s.tc.POST(path, map[string]interface{}{
		"question_id": questionID,
		"text":        text,
	}); err != nil {
		return err
	}

	// Advance the cursor when the engine handed back a next question.
	if next, err := s.tc.GetResponseField("next_question.id"); err == nil {
		s.tc.SetQuestionID(next.(string))
	}
	return nil
}

func (s *flowSteps) finalizeSubmission(ctx context.Context) error {
	path := fmt.Sprintf("/flow/submissions/%s/finalize", s.tc.GetSubmissionID())
	return s.tc.POST(path, map[string]interface{}{})
}

func (s *flowSteps) resumeSubmission(ctx context.Context) error {
	return s.resumeSubmissionByID(ctx, s.tc.GetSubmissionID())
}

func (s *flowSteps) resumeSubmissionByID(ctx context.Context, submissionID string) error {
	return s.tc.GET("/flow/submissions/"+submissionID, nil)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"garita/internal/flow/handler/mocks"
	"garita/internal/flow/models"
	"garita/internal/flow/service"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/flow-mocks.go -package=mocks Engine
type FlowHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *FlowHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestFlowHandlerSuite(t *testing.T) {
	suite.Run(t, new(FlowHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockEngine) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockEngine := mocks.NewMockEngine(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockEngine, logger, nil, nil)
	r := chi.NewRouter()
	handler.Register(r)
	return handler, mockEngine
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func (s *FlowHandlerSuite) TestHandleStart() {
	handler, mockEngine := newTestHandler(s.T())
	questionnaireID := id.NewQuestionnaireID()
	sub := &models.Submission{
		ID:              id.NewSubmissionID(),
		QuestionnaireID: questionnaireID,
		Phase:           models.PhaseEntrada,
		CreatedAt:       time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC),
	}
	first := models.Question{
		ID:       id.NewQuestionID(),
		Text:     "Placa del vehiculo",
		Kind:     models.QuestionKindText,
		Required: true,
		Tag:      models.TagPlaca,
	}
	mockEngine.EXPECT().Start(gomock.Any(), questionnaireID, models.PhaseEntrada).Return(sub, first, nil)

	body, err := json.Marshal(startRequest{QuestionnaireID: questionnaireID.String(), Phase: "entrada"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleStart(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	subResp := resp["submission"].(map[string]any)
	assert.Equal(s.T(), sub.ID.String(), subResp["id"])
	firstResp := resp["first_question"].(map[string]any)
	assert.Equal(s.T(), "Placa del vehiculo", firstResp["text"])
	assert.Equal(s.T(), "placa", firstResp["semantic_tag"])
}

func (s *FlowHandlerSuite) TestHandleStartBadQuestionnaireID() {
	handler, _ := newTestHandler(s.T())

	body := []byte(`{"questionnaire_id":"not-a-uuid","phase":"entrada"}`)
	req := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.handleStart(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *FlowHandlerSuite) TestHandleStep() {
	handler, mockEngine := newTestHandler(s.T())
	submissionID := id.NewSubmissionID()
	questionID := id.NewQuestionID()
	next := models.Question{ID: id.NewQuestionID(), Text: "Numero de contenedor", Kind: models.QuestionKindText}
	mockEngine.EXPECT().
		Step(gomock.Any(), submissionID, questionID, models.AnswerValue{Text: "ABC 123"}, false).
		Return(service.StepResult{
			Answer:       models.Answer{ID: id.NewAnswerID(), SubmissionID: submissionID, QuestionID: questionID, Text: "ABC123"},
			NextQuestion: &next,
		}, nil)

	body, err := json.Marshal(stepRequest{QuestionID: questionID.String(), Text: "ABC 123"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/submissions/"+submissionID.String()+"/steps", bytes.NewReader(body))
	req = withURLParam(req, "submissionID", submissionID.String())
	w := httptest.NewRecorder()
	handler.handleStep(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	answer := resp["answer"].(map[string]any)
	assert.Equal(s.T(), "ABC123", answer["text"])
	nextResp := resp["next_question"].(map[string]any)
	assert.Equal(s.T(), "Numero de contenedor", nextResp["text"])
	assert.Equal(s.T(), false, resp["is_finished"])
}

func (s *FlowHandlerSuite) TestHandleStepMultipart() {
	handler, mockEngine := newTestHandler(s.T())
	submissionID := id.NewSubmissionID()
	questionID := id.NewQuestionID()
	content := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}

	mockEngine.EXPECT().
		Step(gomock.Any(), submissionID, questionID, gomock.Any(), false).
		DoAndReturn(func(_ context.Context, _ id.SubmissionID, _ id.QuestionID, value models.AnswerValue, _ bool) (service.StepResult, error) {
			require.NotNil(s.T(), value.File)
			assert.Equal(s.T(), "sello.jpg", value.File.Name)
			assert.Equal(s.T(), content, value.File.Content)
			return service.StepResult{Finished: true}, nil
		})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	payload, err := json.Marshal(stepRequest{QuestionID: questionID.String()})
	require.NoError(s.T(), err)
	require.NoError(s.T(), form.WriteField("payload", string(payload)))
	part, err := form.CreateFormFile("file", "sello.jpg")
	require.NoError(s.T(), err)
	_, err = part.Write(content)
	require.NoError(s.T(), err)
	require.NoError(s.T(), form.Close())

	req := httptest.NewRequest(http.MethodPost, "/submissions/"+submissionID.String()+"/steps", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req = withURLParam(req, "submissionID", submissionID.String())
	w := httptest.NewRecorder()
	handler.handleStep(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), true, resp["is_finished"])
	assert.Nil(s.T(), resp["next_question"])
}

func (s *FlowHandlerSuite) TestHandleStepFinalizedSubmission() {
	handler, mockEngine := newTestHandler(s.T())
	submissionID := id.NewSubmissionID()
	questionID := id.NewQuestionID()
	mockEngine.EXPECT().
		Step(gomock.Any(), submissionID, questionID, gomock.Any(), false).
		Return(service.StepResult{}, dErrors.New(dErrors.CodeFinalizedSubmission, "submission is already finalized"))

	body, err := json.Marshal(stepRequest{QuestionID: questionID.String(), Text: "x"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/submissions/"+submissionID.String()+"/steps", bytes.NewReader(body))
	req = withURLParam(req, "submissionID", submissionID.String())
	w := httptest.NewRecorder()
	handler.handleStep(w, req)

	assert.Equal(s.T(), http.StatusConflict, w.Code, w.Body.String())
}

func (s *FlowHandlerSuite) TestHandleFinalize() {
	handler, mockEngine := newTestHandler(s.T())
	submissionID := id.NewSubmissionID()
	closedAt := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	mockEngine.EXPECT().Finalize(gomock.Any(), submissionID).Return(&models.Submission{
		ID:        submissionID,
		Finalized: true,
		ClosedAt:  &closedAt,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/submissions/"+submissionID.String()+"/finalize", nil)
	req = withURLParam(req, "submissionID", submissionID.String())
	w := httptest.NewRecorder()
	handler.handleFinalize(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), true, resp["finalized"])
}

func (s *FlowHandlerSuite) TestHandleResume() {
	handler, mockEngine := newTestHandler(s.T())
	submissionID := id.NewSubmissionID()
	next := models.Question{ID: id.NewQuestionID(), Text: "Numero de precinto", Kind: models.QuestionKindFile}
	mockEngine.EXPECT().Resume(gomock.Any(), submissionID).Return(service.ResumeResult{
		Submission:   &models.Submission{ID: submissionID, Phase: models.PhaseSalida},
		Answers:      []models.Answer{{ID: id.NewAnswerID(), SubmissionID: submissionID, Text: "ABC123"}},
		NextQuestion: &next,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/submissions/"+submissionID.String(), nil)
	req = withURLParam(req, "submissionID", submissionID.String())
	w := httptest.NewRecorder()
	handler.handleResume(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	answers := resp["answers"].([]any)
	assert.Len(s.T(), answers, 1)
	nextResp := resp["next_question"].(map[string]any)
	assert.Equal(s.T(), "Numero de precinto", nextResp["text"])
}

func (s *FlowHandlerSuite) TestHandleResumeNotFound() {
	handler, mockEngine := newTestHandler(s.T())
	submissionID := id.NewSubmissionID()
	mockEngine.EXPECT().Resume(gomock.Any(), submissionID).
		Return(service.ResumeResult{}, dErrors.New(dErrors.CodeNotFound, "submission not found"))

	req := httptest.NewRequest(http.MethodGet, "/submissions/"+submissionID.String(), nil)
	req = withURLParam(req, "submissionID", submissionID.String())
	w := httptest.NewRecorder()
	handler.handleResume(w, req)

	assert.Equal(s.T(), http.StatusNotFound, w.Code, w.Body.String())
}

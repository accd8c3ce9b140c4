// Package handler exposes the questionnaire flow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"garita/internal/flow/models"
	"garita/internal/flow/service"
	"garita/internal/platform/metrics"
	"garita/internal/platform/middleware"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/httputil"
)

// maxUploadBytes bounds multipart step requests.
const maxUploadBytes = 12 << 20

// Engine is the flow surface the handler drives.
type Engine interface {
	Start(ctx context.Context, questionnaireID id.QuestionnaireID, phase models.Phase) (*models.Submission, models.Question, error)
	Step(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID, value models.AnswerValue, forceTruncate bool) (service.StepResult, error)
	Finalize(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	Resume(ctx context.Context, submissionID id.SubmissionID) (service.ResumeResult, error)
}

type Handler struct {
	engine       Engine
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(engine Engine, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{engine: engine, logger: logger, metrics: m, jwtValidator: jwtValidator}
}

// Register mounts the flow routes.
func (h *Handler) Register(r chi.Router) {
	flowRouter := chi.NewRouter()
	flowRouter.Use(middleware.Recovery(h.logger))
	flowRouter.Use(middleware.RequestID)
	flowRouter.Use(middleware.Logger(h.logger))
	flowRouter.Use(middleware.Device)
	flowRouter.Use(middleware.Timeout(30 * time.Second))
	flowRouter.Use(middleware.Latency(h.metrics))
	flowRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	flowRouter.Post("/", h.handleStart)
	flowRouter.Get("/{submissionID}", h.handleResume)
	flowRouter.Post("/{submissionID}/steps", h.handleStep)
	flowRouter.Post("/{submissionID}/finalize", h.handleFinalize)

	r.Mount("/flow/submissions", flowRouter)
}

type startRequest struct {
	QuestionnaireID string `json:"questionnaire_id"`
	Phase           string `json:"phase"`
}

type questionResponse struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Kind     string           `json:"kind"`
	Required bool             `json:"required"`
	Tag      string           `json:"semantic_tag,omitempty"`
	Choices  []choiceResponse `json:"choices,omitempty"`
}

type choiceResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type startResponse struct {
	Submission    *models.Submission `json:"submission"`
	FirstQuestion questionResponse   `json:"first_question"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	questionnaireID, err := id.ParseQuestionnaireID(req.QuestionnaireID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid questionnaire id"))
		return
	}
	phase := models.Phase(req.Phase)
	if !phase.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown phase %q", req.Phase))
		return
	}

	sub, first, err := h.engine.Start(ctx, questionnaireID, phase)
	if err != nil {
		h.logError(ctx, "start failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, startResponse{
		Submission:    sub,
		FirstQuestion: toQuestionResponse(first),
	})
}

type stepRequest struct {
	QuestionID    string                 `json:"question_id"`
	Text          string                 `json:"text,omitempty"`
	ChoiceID      string                 `json:"choice_id,omitempty"`
	ActorID       string                 `json:"actor_id,omitempty"`
	Rows          []models.ProviderRow   `json:"rows,omitempty"`
	OCR           *models.OCRDiagnostics `json:"ocr,omitempty"`
	ForceTruncate bool                   `json:"force_truncate_future,omitempty"`
}

type stepResponse struct {
	Answer       models.Answer     `json:"answer"`
	NextQuestion *questionResponse `json:"next_question"`
	IsFinished   bool              `json:"is_finished"`
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid submission id"))
		return
	}

	req, upload, err := h.decodeStep(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	questionID, err := id.ParseQuestionID(req.QuestionID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid question id"))
		return
	}

	value := models.AnswerValue{
		Text: req.Text,
		Rows: req.Rows,
		OCR:  req.OCR,
		File: upload,
	}
	if req.ChoiceID != "" {
		if value.ChoiceID, err = id.ParseChoiceID(req.ChoiceID); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid choice id"))
			return
		}
	}
	if req.ActorID != "" {
		if value.ActorID, err = id.ParseActorID(req.ActorID); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid actor id"))
			return
		}
	}

	result, err := h.engine.Step(ctx, submissionID, questionID, value, req.ForceTruncate)
	if err != nil {
		h.logError(ctx, "step failed", err)
		httputil.WriteError(w, err)
		return
	}

	resp := stepResponse{Answer: result.Answer, IsFinished: result.Finished}
	if result.NextQuestion != nil {
		q := toQuestionResponse(*result.NextQuestion)
		resp.NextQuestion = &q
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// decodeStep accepts either a JSON body or, for file questions, a multipart
// form with a "payload" JSON part and a "file" part.
func (h *Handler) decodeStep(r *http.Request) (stepRequest, *models.FileUpload, error) {
	var req stepRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return req, nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &req); err != nil {
			return req, nil, dErrors.New(dErrors.CodeBadRequest, "invalid payload part")
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			return req, nil, dErrors.New(dErrors.CodeBadRequest, "missing file part")
		}
		defer file.Close()
		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return req, nil, dErrors.New(dErrors.CodeBadRequest, "unreadable file part")
		}
		return req, &models.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     content,
		}, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return req, nil, nil
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid submission id"))
		return
	}

	sub, err := h.engine.Finalize(ctx, submissionID)
	if err != nil {
		h.logError(ctx, "finalize failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

type resumeResponse struct {
	Submission   *models.Submission `json:"submission"`
	Answers      []models.Answer    `json:"answers"`
	NextQuestion *questionResponse  `json:"next_question"`
	IsFinished   bool               `json:"is_finished"`
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid submission id"))
		return
	}

	result, err := h.engine.Resume(ctx, submissionID)
	if err != nil {
		h.logError(ctx, "resume failed", err)
		httputil.WriteError(w, err)
		return
	}

	resp := resumeResponse{
		Submission: result.Submission,
		Answers:    result.Answers,
		IsFinished: result.Finished,
	}
	if result.NextQuestion != nil {
		q := toQuestionResponse(*result.NextQuestion)
		resp.NextQuestion = &q
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "error", err)
}

func toQuestionResponse(q models.Question) questionResponse {
	resp := questionResponse{
		ID:       q.ID.String(),
		Text:     q.Text,
		Kind:     string(q.Kind),
		Required: q.Required,
	}
	if q.Tag != models.TagNone && q.Tag != "" {
		resp.Tag = string(q.Tag)
	}
	for _, c := range q.Choices {
		resp.Choices = append(resp.Choices, choiceResponse{ID: c.ID.String(), Text: c.Text})
	}
	return resp
}

// Package service orchestrates the questionnaire flow: one step validates
// the input, binds actors, persists the answer, truncates stale downstream
// answers, and resolves the next question.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"garita/internal/audit"
	"garita/internal/files"
	"garita/internal/flow/actors"
	"garita/internal/flow/graph"
	"garita/internal/flow/ledger"
	"garita/internal/flow/metrics"
	"garita/internal/flow/models"
	"garita/internal/flow/store"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/sentinel"
	"garita/pkg/requestcontext"
)

// AuditPublisher records gate activity. Emit failures are logged, never
// surfaced; losing an audit row must not fail a step.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine drives a submission through its questionnaire. All mutations of a
// step run inside one StoreTx so a failure never leaves a half-applied step.
type Engine struct {
	submissions    store.SubmissionStore
	questionnaires store.QuestionnaireStore
	graphs         *graph.Cache
	ledger         *ledger.Ledger
	resolver       *actors.Resolver
	tx             StoreTx
	files          files.Storage
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

// WithFileStorage enables file questions. Without it a file upload fails
// validation.
func WithFileStorage(storage files.Storage) Option {
	return func(e *Engine) {
		e.files = storage
	}
}

// New constructs an Engine.
func New(
	submissions store.SubmissionStore,
	questionnaires store.QuestionnaireStore,
	graphs *graph.Cache,
	led *ledger.Ledger,
	resolver *actors.Resolver,
	tx StoreTx,
	opts ...Option,
) *Engine {
	e := &Engine{
		submissions:    submissions,
		questionnaires: questionnaires,
		graphs:         graphs,
		ledger:         led,
		resolver:       resolver,
		tx:             tx,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StepResult is the outcome of one flow step.
type StepResult struct {
	Answer       models.Answer
	NextQuestion *models.Question
	Finished     bool
}

// ResumeResult describes where an interrupted submission stands.
type ResumeResult struct {
	Submission   *models.Submission
	Answers      []models.Answer
	NextQuestion *models.Question
	Finished     bool
}

// Start creates a draft submission and returns its first question.
func (e *Engine) Start(ctx context.Context, questionnaireID id.QuestionnaireID, phase models.Phase) (*models.Submission, models.Question, error) {
	if _, err := e.questionnaires.FindByID(ctx, questionnaireID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.Question{}, dErrors.Newf(dErrors.CodeNotFound, "questionnaire %s not found", questionnaireID)
		}
		return nil, models.Question{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load questionnaire")
	}

	g, err := e.graphs.Get(ctx, questionnaireID)
	if err != nil {
		return nil, models.Question{}, err
	}
	first, err := g.First()
	if err != nil {
		return nil, models.Question{}, err
	}

	sub, err := models.NewSubmission(id.NewSubmissionID(), questionnaireID, phase, requestcontext.Now(ctx))
	if err != nil {
		return nil, models.Question{}, err
	}
	if err := e.submissions.Save(ctx, sub); err != nil {
		return nil, models.Question{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create submission")
	}

	if e.metrics != nil {
		e.metrics.SubmissionsStarted.Inc()
	}
	e.emitAudit(ctx, audit.Event{
		SubmissionID: sub.ID,
		Action:       audit.ActionSubmissionStarted,
		Detail:       string(phase),
	})
	return sub, first, nil
}

// Step saves one answer and advances the flow.
//
// Validation failures and the finalized check are reported before anything
// is written. The actor bind, the upsert, the truncation, and the
// denormalized submission update commit in one transaction; displaced and
// truncated files are deleted only after that commit.
func (e *Engine) Step(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID, value models.AnswerValue, forceTruncate bool) (StepResult, error) {
	start := time.Now()
	result, err := e.step(ctx, submissionID, questionID, value, forceTruncate)
	if e.metrics != nil {
		e.metrics.ObserveStep(start)
		if err != nil {
			e.metrics.IncrementStep("error")
		} else {
			e.metrics.IncrementStep("ok")
		}
	}
	return result, err
}

func (e *Engine) step(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID, value models.AnswerValue, forceTruncate bool) (StepResult, error) {
	sub, err := e.loadSubmission(ctx, submissionID)
	if err != nil {
		return StepResult{}, err
	}
	if sub.Finalized {
		return StepResult{}, dErrors.Newf(dErrors.CodeFinalizedSubmission, "submission %s is finalized", submissionID)
	}

	g, err := e.graphs.Get(ctx, sub.QuestionnaireID)
	if err != nil {
		return StepResult{}, err
	}
	question, err := g.Question(questionID)
	if err != nil {
		return StepResult{}, err
	}

	if err := e.validateValue(question, value); err != nil {
		return StepResult{}, err
	}

	filePath, err := e.storeUpload(ctx, sub, question, value.File)
	if err != nil {
		return StepResult{}, err
	}

	var (
		saved     models.Answer
		obsolete  []string // blob paths to delete after commit
		truncated int
	)
	err = e.tx.RunInTx(ctx, submissionID.String(), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		// Reload inside the boundary so two devices racing on one
		// submission serialize on fresh state.
		cur, err := e.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}
		if cur.Finalized {
			return dErrors.Newf(dErrors.CodeFinalizedSubmission, "submission %s is finalized", submissionID)
		}

		draft, err := e.buildDraft(txCtx, cur, question, value, filePath, now)
		if err != nil {
			return err
		}

		var displaced string
		saved, displaced, err = e.ledger.Upsert(txCtx, cur, draft)
		if err != nil {
			return err
		}
		if displaced != "" {
			obsolete = append(obsolete, displaced)
		}

		if forceTruncate {
			doomed, err := e.ledger.TruncateAfter(txCtx, g, submissionID, question.Order)
			if err != nil {
				return err
			}
			truncated = len(doomed)
			for _, a := range doomed {
				if a.FilePath != "" {
					obsolete = append(obsolete, a.FilePath)
				}
			}
		}

		cur.UpdatedAt = now
		if err := e.submissions.Save(txCtx, cur); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submission")
		}
		sub = cur
		return nil
	})
	if err != nil {
		// The step applied nothing; the stored blob, if any, is an orphan.
		e.removeBlobs(ctx, []string{filePath})
		return StepResult{}, err
	}

	e.removeBlobs(ctx, obsolete)
	if truncated > 0 && e.metrics != nil {
		e.metrics.AddTruncated(truncated)
	}

	next, ok, err := g.Next(questionID, value.ChoiceID)
	if err != nil {
		return StepResult{}, err
	}

	e.emitAudit(ctx, audit.Event{
		SubmissionID: submissionID,
		Action:       audit.ActionAnswerSaved,
		Detail:       fmt.Sprintf("question %s", questionID),
	})
	if truncated > 0 {
		e.emitAudit(ctx, audit.Event{
			SubmissionID: submissionID,
			Action:       audit.ActionAnswersTruncated,
			Detail:       fmt.Sprintf("%d answers after order %d", truncated, question.Order),
		})
	}

	result := StepResult{Answer: saved, Finished: !ok}
	if ok {
		result.NextQuestion = &next
	}
	return result, nil
}

// Finalize closes a submission. Every required question on the taken path
// must be answered.
func (e *Engine) Finalize(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	var closed models.Submission
	err := e.tx.RunInTx(ctx, submissionID.String(), func(txCtx context.Context) error {
		sub, err := e.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}

		g, err := e.graphs.Get(txCtx, sub.QuestionnaireID)
		if err != nil {
			return err
		}
		byQuestion, err := e.answersByQuestion(txCtx, g, submissionID)
		if err != nil {
			return err
		}
		if err := checkPathComplete(g, byQuestion); err != nil {
			return err
		}

		closed, err = models.Finalize(*sub, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := e.submissions.Save(txCtx, &closed); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.SubmissionsFinished.Inc()
	}
	e.emitAudit(ctx, audit.Event{
		SubmissionID: submissionID,
		Action:       audit.ActionSubmissionFinalized,
	})
	return &closed, nil
}

// Resume reports where an interrupted submission stands: its answers so far
// and the first unanswered question on the taken path.
func (e *Engine) Resume(ctx context.Context, submissionID id.SubmissionID) (ResumeResult, error) {
	sub, err := e.loadSubmission(ctx, submissionID)
	if err != nil {
		return ResumeResult{}, err
	}
	g, err := e.graphs.Get(ctx, sub.QuestionnaireID)
	if err != nil {
		return ResumeResult{}, err
	}

	answers, err := e.ledger.ListBySubmission(ctx, g, submissionID)
	if err != nil {
		return ResumeResult{}, err
	}
	byQuestion := make(map[id.QuestionID]models.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	next, err := walkPath(g, byQuestion, false)
	if err != nil {
		return ResumeResult{}, err
	}
	return ResumeResult{
		Submission:   sub,
		Answers:      answers,
		NextQuestion: next,
		Finished:     next == nil,
	}, nil
}

func (e *Engine) loadSubmission(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	sub, err := e.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", submissionID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission")
	}
	return sub, nil
}

// validateValue enforces the question's required and type constraints. Pure
// local validation; nothing is written when it fails.
func (e *Engine) validateValue(question models.Question, value models.AnswerValue) error {
	// An OCR reading that failed verification may only be kept as free
	// text on fields with a manual override.
	if value.OCR != nil && !value.OCR.Valid && !question.Tag.AllowsManualOverride() {
		return dErrors.Newf(dErrors.CodeValidation,
			"extracted %s value failed verification and the field does not allow manual entry", question.Tag)
	}

	if question.Tag.IsActor() {
		if question.Tag == models.TagProveedor {
			if value.ActorID.IsNil() && len(value.Rows) == 0 {
				return dErrors.New(dErrors.CodeValidation, "provider question requires an actor or at least one row")
			}
			return nil
		}
		if value.ActorID.IsNil() {
			return dErrors.Newf(dErrors.CodeValidation, "question expects a %s reference", question.Tag)
		}
		return nil
	}

	text := strings.TrimSpace(value.Text)
	switch question.Kind {
	case models.QuestionKindText:
		if question.Required && text == "" {
			return dErrors.New(dErrors.CodeValidation, "question requires a text value")
		}
	case models.QuestionKindNumber:
		if question.Required && text == "" {
			return dErrors.New(dErrors.CodeValidation, "question requires a numeric value")
		}
		if text != "" && !govalidator.IsFloat(text) {
			return dErrors.Newf(dErrors.CodeValidation, "%q is not a number", value.Text)
		}
	case models.QuestionKindDate:
		if question.Required && text == "" {
			return dErrors.New(dErrors.CodeValidation, "question requires a date")
		}
		if text != "" {
			if _, err := time.Parse("2006-01-02", text); err != nil {
				return dErrors.Newf(dErrors.CodeValidation, "%q is not a date (expected YYYY-MM-DD)", value.Text)
			}
		}
	case models.QuestionKindChoice:
		if value.ChoiceID.IsNil() {
			if question.Required {
				return dErrors.New(dErrors.CodeValidation, "question requires a choice selection")
			}
			return nil
		}
		if _, err := question.ChoiceByID(value.ChoiceID); err != nil {
			return err
		}
	case models.QuestionKindFile:
		if value.File != nil {
			if e.files == nil {
				return dErrors.New(dErrors.CodeValidation, "file uploads are not enabled")
			}
			return nil
		}
		if text != "" && question.Tag.AllowsManualOverride() {
			return nil
		}
		if question.Required {
			return dErrors.New(dErrors.CodeValidation, "question requires a file upload")
		}
	}
	return nil
}

// storeUpload writes the evidence blob before the transaction opens. On a
// later step failure the blob is an orphan and is removed best-effort.
func (e *Engine) storeUpload(ctx context.Context, sub *models.Submission, question models.Question, upload *models.FileUpload) (string, error) {
	if upload == nil || question.Kind != models.QuestionKindFile {
		return "", nil
	}
	folder := string(question.Tag)
	if question.Tag == models.TagNone {
		folder = string(sub.Phase)
	}
	path, err := e.files.Save(ctx, folder, upload.Name, upload.Content)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store file")
	}
	return path, nil
}

// buildDraft assembles the answer and applies actor bindings and
// denormalized submission fields. Runs inside the step transaction because
// the provider merge reads the existing answer.
func (e *Engine) buildDraft(ctx context.Context, sub *models.Submission, question models.Question, value models.AnswerValue, filePath string, now time.Time) (models.Answer, error) {
	draft := models.Answer{
		SubmissionID: sub.ID,
		QuestionID:   question.ID,
		Text:         strings.TrimSpace(value.Text),
		FilePath:     filePath,
		OCR:          value.OCR,
		Author:       requestcontext.Operator(ctx),
		SavedAt:      now,
	}

	if !value.ChoiceID.IsNil() {
		choice, err := question.ChoiceByID(value.ChoiceID)
		if err != nil {
			return models.Answer{}, err
		}
		choiceID := value.ChoiceID
		draft.ChoiceID = &choiceID
		if draft.Text == "" {
			draft.Text = choice.Text
		}
	}

	switch {
	case question.Tag == models.TagProveedor && len(value.Rows) > 0:
		merged, err := e.mergeProviderRows(ctx, sub.ID, question.ID, value.Rows)
		if err != nil {
			return models.Answer{}, err
		}
		if err := actors.ValidateRowSet(merged); err != nil {
			return models.Answer{}, err
		}
		encoded, err := models.EncodeProviderRows(merged)
		if err != nil {
			return models.Answer{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode provider rows")
		}
		draft.Rows = merged
		draft.Text = encoded
	case question.Tag.IsActor() && !value.ActorID.IsNil():
		name, err := e.resolver.BindSingleActor(ctx, sub, question, value.ActorID)
		if err != nil {
			return models.Answer{}, err
		}
		draft.Text = name
	}

	switch question.Tag {
	case models.TagPlaca:
		sub.Plate = draft.Text
	case models.TagContenedor:
		sub.Container = draft.Text
	case models.TagPrecinto:
		sub.Seal = draft.Text
	}
	return draft, nil
}

func (e *Engine) mergeProviderRows(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID, incoming []models.ProviderRow) ([]models.ProviderRow, error) {
	existing, err := e.ledger.ExistingRows(ctx, submissionID, questionID)
	if err != nil {
		return nil, err
	}
	return actors.MergeProviderRows(existing, incoming), nil
}

func (e *Engine) removeBlobs(ctx context.Context, paths []string) {
	if e.files == nil {
		return
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := e.files.Delete(ctx, path); err != nil {
			e.logger.WarnContext(ctx, "failed to delete obsolete file", "path", path, "error", err)
		}
	}
}

func (e *Engine) answersByQuestion(ctx context.Context, g *graph.Graph, submissionID id.SubmissionID) (map[id.QuestionID]models.Answer, error) {
	answers, err := e.ledger.ListBySubmission(ctx, g, submissionID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[id.QuestionID]models.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	return byQuestion, nil
}

func (e *Engine) emitAudit(ctx context.Context, event audit.Event) {
	if e.auditPublisher == nil {
		return
	}
	if err := e.auditPublisher.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

// walkPath follows the taken traversal from the first question, using saved
// answers to resolve choice selections. It returns the first unanswered
// question on the path, or nil when the path is exhausted. With skipOptional
// set, unanswered optional questions are stepped over by default order.
func walkPath(g *graph.Graph, answers map[id.QuestionID]models.Answer, skipOptional bool) (*models.Question, error) {
	current, err := g.First()
	if err != nil {
		return nil, err
	}

	seen := make(map[id.QuestionID]bool, g.Len())
	for {
		if seen[current.ID] {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"questionnaire branching loops through question %s", current.ID)
		}
		seen[current.ID] = true

		answer, answered := answers[current.ID]
		if !answered {
			if current.Required || !skipOptional {
				q := current
				return &q, nil
			}
		}

		var choiceID id.ChoiceID
		if answered && answer.ChoiceID != nil {
			choiceID = *answer.ChoiceID
		}
		next, ok, err := g.Next(current.ID, choiceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		current = next
	}
}

// checkPathComplete verifies every required question on the taken path has
// an answer.
func checkPathComplete(g *graph.Graph, answers map[id.QuestionID]models.Answer) error {
	missing, err := walkPath(g, answers, true)
	if err != nil {
		return err
	}
	if missing != nil {
		return dErrors.Newf(dErrors.CodeValidation,
			"required question %q is unanswered", missing.Text)
	}
	return nil
}

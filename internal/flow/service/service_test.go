package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garita/internal/audit"
	"garita/internal/catalog"
	"garita/internal/flow/actors"
	"garita/internal/flow/graph"
	"garita/internal/flow/ledger"
	"garita/internal/flow/models"
	"garita/internal/flow/store"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

type fakeStorage struct {
	saves   int
	deleted []string
}

func (f *fakeStorage) Save(_ context.Context, _, _ string, _ []byte) (string, error) {
	f.saves++
	return fmt.Sprintf("blobs/%d", f.saves), nil
}

func (f *fakeStorage) Delete(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

type fixture struct {
	engine      *Engine
	submissions *store.InMemorySubmissions
	answers     *store.InMemoryAnswers
	actors      *catalog.InMemoryStore
	storage     *fakeStorage
	auditStore  *audit.InMemoryStore
	qnID        id.QuestionnaireID
}

func newFixture(t *testing.T, questions func(qnID id.QuestionnaireID) []models.Question) *fixture {
	t.Helper()

	qn, err := models.NewQuestionnaire(id.NewQuestionnaireID(), "control de entrada", "America/Santiago", time.Now())
	require.NoError(t, err)

	questionnaires := store.NewInMemoryQuestionnaires()
	questionnaires.Seed(*qn, questions(qn.ID))

	f := &fixture{
		submissions: store.NewInMemorySubmissions(),
		answers:     store.NewInMemoryAnswers(),
		actors:      catalog.NewInMemoryStore(),
		storage:     &fakeStorage{},
		auditStore:  audit.NewInMemoryStore(),
		qnID:        qn.ID,
	}
	f.engine = New(
		f.submissions,
		questionnaires,
		graph.NewCache(questionnaires),
		ledger.New(f.answers),
		actors.NewResolver(catalog.NewService(f.actors)),
		NewShardedTx(),
		WithFileStorage(f.storage),
		WithAuditPublisher(audit.NewPublisher(f.auditStore)),
	)
	return f
}

func (f *fixture) start(t *testing.T) (*models.Submission, models.Question) {
	t.Helper()
	sub, first, err := f.engine.Start(context.Background(), f.qnID, models.PhaseEntrada)
	require.NoError(t, err)
	return sub, first
}

func question(qnID id.QuestionnaireID, order int, kind models.QuestionKind, tag models.SemanticTag, required bool) models.Question {
	return models.Question{
		ID:              id.NewQuestionID(),
		QuestionnaireID: qnID,
		Text:            fmt.Sprintf("pregunta %d", order),
		Kind:            kind,
		Required:        required,
		Order:           order,
		Tag:             tag,
	}
}

func linearQuestions(qnID id.QuestionnaireID) []models.Question {
	return []models.Question{
		question(qnID, 1, models.QuestionKindText, models.TagPlaca, true),
		question(qnID, 2, models.QuestionKindText, models.TagNone, true),
		question(qnID, 3, models.QuestionKindText, models.TagNone, false),
	}
}

func TestStartReturnsFirstQuestion(t *testing.T) {
	f := newFixture(t, linearQuestions)

	sub, first := f.start(t)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, models.PhaseEntrada, sub.Phase)
	assert.False(t, sub.Finalized)

	events, err := f.auditStore.ListBySubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSubmissionStarted, events[0].Action)
}

func TestStartUnknownQuestionnaire(t *testing.T) {
	f := newFixture(t, linearQuestions)

	_, _, err := f.engine.Start(context.Background(), id.NewQuestionnaireID(), models.PhaseEntrada)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStepLinearTraversal(t *testing.T) {
	f := newFixture(t, linearQuestions)
	ctx := context.Background()
	sub, q1 := f.start(t)

	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "ABC123"}, false)
	require.NoError(t, err)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, 2, res.NextQuestion.Order)
	assert.False(t, res.Finished)

	q2 := *res.NextQuestion
	res, err = f.engine.Step(ctx, sub.ID, q2.ID, models.AnswerValue{Text: "carga general"}, false)
	require.NoError(t, err)
	require.NotNil(t, res.NextQuestion)
	q3 := *res.NextQuestion

	res, err = f.engine.Step(ctx, sub.ID, q3.ID, models.AnswerValue{Text: "sin novedades"}, false)
	require.NoError(t, err)
	assert.Nil(t, res.NextQuestion)
	assert.True(t, res.Finished)

	// The plate answer denormalized onto the submission.
	stored, err := f.submissions.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", stored.Plate)
}

func TestStepBranchWinsOverOrder(t *testing.T) {
	var choiceNo id.ChoiceID
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		q1 := question(qnID, 1, models.QuestionKindChoice, models.TagNone, true)
		q2 := question(qnID, 2, models.QuestionKindText, models.TagNone, true)
		q3 := question(qnID, 3, models.QuestionKindText, models.TagNone, false)

		choiceNo = id.NewChoiceID()
		branch := q3.ID
		q1.Choices = []models.Choice{
			{ID: id.NewChoiceID(), QuestionID: q1.ID, Text: "si"},
			{ID: choiceNo, QuestionID: q1.ID, Text: "no", BranchTo: &branch},
		}
		return []models.Question{q1, q2, q3}
	})

	sub, q1 := f.start(t)
	res, err := f.engine.Step(context.Background(), sub.ID, q1.ID, models.AnswerValue{ChoiceID: choiceNo}, false)
	require.NoError(t, err)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, 3, res.NextQuestion.Order)
	// The saved answer carries the choice text for display.
	assert.Equal(t, "no", res.Answer.Text)
}

func TestStepTruncatesDownstreamAnswers(t *testing.T) {
	f := newFixture(t, linearQuestions)
	ctx := context.Background()
	sub, q1 := f.start(t)

	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "ABC123"}, false)
	require.NoError(t, err)
	q2 := *res.NextQuestion
	res, err = f.engine.Step(ctx, sub.ID, q2.ID, models.AnswerValue{Text: "x"}, false)
	require.NoError(t, err)
	q3 := *res.NextQuestion
	_, err = f.engine.Step(ctx, sub.ID, q3.ID, models.AnswerValue{Text: "y"}, false)
	require.NoError(t, err)

	// Revising Q1 with force truncate removes the Q2 and Q3 answers.
	_, err = f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "XYZ789"}, true)
	require.NoError(t, err)

	remaining, err := f.answers.ListBySubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, q1.ID, remaining[0].QuestionID)
	assert.Equal(t, "XYZ789", remaining[0].Text)
}

func TestStepWithoutForceKeepsDownstream(t *testing.T) {
	f := newFixture(t, linearQuestions)
	ctx := context.Background()
	sub, q1 := f.start(t)

	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "ABC123"}, false)
	require.NoError(t, err)
	q2 := *res.NextQuestion
	_, err = f.engine.Step(ctx, sub.ID, q2.ID, models.AnswerValue{Text: "x"}, false)
	require.NoError(t, err)

	_, err = f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "XYZ789"}, false)
	require.NoError(t, err)

	remaining, err := f.answers.ListBySubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestStepOnFinalizedSubmission(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{question(qnID, 1, models.QuestionKindText, models.TagNone, true)}
	})
	ctx := context.Background()
	sub, q1 := f.start(t)

	_, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "done"}, false)
	require.NoError(t, err)
	_, err = f.engine.Finalize(ctx, sub.ID)
	require.NoError(t, err)

	// Even a perfectly valid payload is rejected after finalization.
	_, err = f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "late"}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFinalizedSubmission))
}

func TestStepValidation(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{
			question(qnID, 1, models.QuestionKindText, models.TagNone, true),
			question(qnID, 2, models.QuestionKindNumber, models.TagNone, false),
			question(qnID, 3, models.QuestionKindDate, models.TagNone, false),
		}
	})
	ctx := context.Background()
	sub, q1 := f.start(t)

	q2 := mustNext(t, f, sub.ID, q1, "algo")
	q3 := mustNext(t, f, sub.ID, *q2, "12")

	tests := []struct {
		name     string
		question models.Question
		value    models.AnswerValue
	}{
		{name: "required text empty", question: q1, value: models.AnswerValue{Text: "   "}},
		{name: "number not numeric", question: *q2, value: models.AnswerValue{Text: "doce"}},
		{name: "date malformed", question: *q3, value: models.AnswerValue{Text: "30-08-2026"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Step(ctx, sub.ID, tt.question.ID, tt.value, false)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func mustNext(t *testing.T, f *fixture, subID id.SubmissionID, q models.Question, text string) *models.Question {
	t.Helper()
	res, err := f.engine.Step(context.Background(), subID, q.ID, models.AnswerValue{Text: text}, false)
	require.NoError(t, err)
	require.NotNil(t, res.NextQuestion)
	return res.NextQuestion
}

func TestStepUnknownSubmissionAndQuestion(t *testing.T) {
	f := newFixture(t, linearQuestions)
	ctx := context.Background()
	sub, q1 := f.start(t)

	_, err := f.engine.Step(ctx, id.NewSubmissionID(), q1.ID, models.AnswerValue{Text: "x"}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = f.engine.Step(ctx, sub.ID, id.NewQuestionID(), models.AnswerValue{Text: "x"}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStepInvalidOCRValue(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{
			question(qnID, 1, models.QuestionKindText, models.TagPlaca, true),
			question(qnID, 2, models.QuestionKindText, models.TagContenedor, true),
		}
	})
	ctx := context.Background()
	sub, q1 := f.start(t)

	// A misread plate may be kept as manual text.
	badPlate := &models.OCRDiagnostics{FieldKind: "plate", RawText: "AB?", Valid: false}
	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "ABC123", OCR: badPlate}, false)
	require.NoError(t, err)

	// A misread container may not; it has a check digit to satisfy.
	badContainer := &models.OCRDiagnostics{FieldKind: "container", RawText: "CSQU3054380", Valid: false}
	_, err = f.engine.Step(ctx, sub.ID, res.NextQuestion.ID, models.AnswerValue{Text: "CSQU3054380", OCR: badContainer}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestStepBindsSingleActor(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{question(qnID, 1, models.QuestionKindText, models.TagTransportista, true)}
	})
	ctx := context.Background()

	transporter := catalog.Actor{ID: id.NewActorID(), Kind: catalog.KindTransporter, Name: "Transportes Andinos", Active: true}
	require.NoError(t, f.actors.Save(ctx, transporter))

	sub, q1 := f.start(t)
	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{ActorID: transporter.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, "Transportes Andinos", res.Answer.Text)

	stored, err := f.submissions.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TransporterID)
	assert.Equal(t, transporter.ID, *stored.TransporterID)
}

func TestStepMergesProviderRows(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{
			question(qnID, 1, models.QuestionKindText, models.TagProveedor, true),
			question(qnID, 2, models.QuestionKindText, models.TagNone, false),
		}
	})
	ctx := context.Background()
	sub, q1 := f.start(t)

	first := []models.ProviderRow{
		{Name: "Frutera Sur", PurchaseOrder: "OC-100", PalletCount: 4, ContainerCount: 1, Unit: models.UnitKG},
	}
	_, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Rows: first}, false)
	require.NoError(t, err)

	// A second step patches the known row and appends a new one.
	second := []models.ProviderRow{
		{Name: "FRUTERA SUR", PurchaseOrder: "OC-101", PalletCount: 6, ContainerCount: 1, Unit: models.UnitKG},
		{Name: "Lacteos del Valle", PurchaseOrder: "OC-200", PalletCount: 2, ContainerCount: 1, Unit: models.UnitUN},
	}
	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Rows: second}, false)
	require.NoError(t, err)

	require.Len(t, res.Answer.Rows, 2)
	assert.Equal(t, "Frutera Sur", res.Answer.Rows[0].Name) // casing preserved
	assert.Equal(t, "OC-101", res.Answer.Rows[0].PurchaseOrder)
	assert.Equal(t, 6, res.Answer.Rows[0].PalletCount)
	assert.Equal(t, "Lacteos del Valle", res.Answer.Rows[1].Name)

	// The composite value round-trips through the serialized text.
	decoded, err := models.DecodeProviderRows(res.Answer.Text)
	require.NoError(t, err)
	assert.Equal(t, res.Answer.Rows, decoded)
}

func TestStepRejectsIncompleteProviderRows(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{question(qnID, 1, models.QuestionKindText, models.TagProveedor, true)}
	})
	sub, q1 := f.start(t)

	rows := []models.ProviderRow{{Name: "Frutera Sur", PalletCount: 4, Unit: models.UnitKG}}
	_, err := f.engine.Step(context.Background(), sub.ID, q1.ID, models.AnswerValue{Rows: rows}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestStepReplacesFileAndDeletesOldBlob(t *testing.T) {
	f := newFixture(t, func(qnID id.QuestionnaireID) []models.Question {
		return []models.Question{question(qnID, 1, models.QuestionKindFile, models.TagPlaca, true)}
	})
	ctx := context.Background()
	sub, q1 := f.start(t)

	upload := &models.FileUpload{Name: "placa.jpg", ContentType: "image/jpeg", Content: []byte{0xFF}}
	res, err := f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "ABC123", File: upload}, false)
	require.NoError(t, err)
	firstPath := res.Answer.FilePath
	require.NotEmpty(t, firstPath)

	_, err = f.engine.Step(ctx, sub.ID, q1.ID, models.AnswerValue{Text: "ABC123", File: upload}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{firstPath}, f.storage.deleted)
}

func TestFinalize(t *testing.T) {
	f := newFixture(t, linearQuestions)
	ctx := context.Background()
	sub, q1 := f.start(t)

	// Finalizing with the required questions unanswered fails.
	_, err := f.engine.Finalize(ctx, sub.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	q2 := mustNext(t, f, sub.ID, q1, "ABC123")
	_, err = f.engine.Step(ctx, sub.ID, q2.ID, models.AnswerValue{Text: "x"}, false)
	require.NoError(t, err)

	// Question 3 is optional; finalize succeeds without it.
	closed, err := f.engine.Finalize(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, closed.Finalized)
	require.NotNil(t, closed.ClosedAt)

	_, err = f.engine.Finalize(ctx, sub.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFinalizedSubmission))
}

func TestResume(t *testing.T) {
	f := newFixture(t, linearQuestions)
	ctx := context.Background()
	sub, q1 := f.start(t)

	res, err := f.engine.Resume(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, q1.ID, res.NextQuestion.ID)
	assert.Empty(t, res.Answers)

	q2 := mustNext(t, f, sub.ID, q1, "ABC123")
	res, err = f.engine.Resume(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, q2.ID, res.NextQuestion.ID)
	assert.Len(t, res.Answers, 1)
	assert.False(t, res.Finished)

	q3 := mustNext(t, f, sub.ID, *q2, "x")
	_, err = f.engine.Step(ctx, sub.ID, q3.ID, models.AnswerValue{Text: "y"}, false)
	require.NoError(t, err)

	res, err = f.engine.Resume(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, res.NextQuestion)
	assert.True(t, res.Finished)
	assert.Len(t, res.Answers, 3)
}

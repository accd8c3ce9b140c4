package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"garita/internal/flow/models"
	id "garita/pkg/domain"
	"garita/pkg/platform/sentinel"
	txcontext "garita/pkg/platform/tx"
)

// querier is satisfied by both *sql.DB and *sql.Tx so store methods join a
// caller-managed transaction when one rides in the context.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querierFor(ctx context.Context, db *sql.DB) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresSubmissions implements SubmissionStore on PostgreSQL.
type PostgresSubmissions struct {
	db *sql.DB
}

func NewPostgresSubmissions(db *sql.DB) *PostgresSubmissions {
	return &PostgresSubmissions{db: db}
}

func (s *PostgresSubmissions) FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	row := querierFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, questionnaire_id, phase, plate, container, seal,
		       provider_id, transporter_id, receiver_id, regulator_id,
		       finalized, closed_at, created_at, updated_at
		FROM submissions WHERE id = $1`, submissionID.String())

	var (
		sub       models.Submission
		sid, qnID string
		actorRefs [4]sql.NullString
		closedAt  sql.NullTime
	)
	err := row.Scan(&sid, &qnID, &sub.Phase, &sub.Plate, &sub.Container, &sub.Seal,
		&actorRefs[0], &actorRefs[1], &actorRefs[2], &actorRefs[3],
		&sub.Finalized, &closedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}

	if sub.ID, err = id.ParseSubmissionID(sid); err != nil {
		return nil, err
	}
	if sub.QuestionnaireID, err = id.ParseQuestionnaireID(qnID); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		sub.ClosedAt = &t
	}
	targets := []**id.ActorID{&sub.ProviderID, &sub.TransporterID, &sub.ReceiverID, &sub.RegulatorID}
	for i, ref := range actorRefs {
		if !ref.Valid {
			continue
		}
		actorID, err := id.ParseActorID(ref.String)
		if err != nil {
			return nil, err
		}
		*targets[i] = &actorID
	}
	return &sub, nil
}

func (s *PostgresSubmissions) Save(ctx context.Context, sub *models.Submission) error {
	_, err := querierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO submissions (id, questionnaire_id, phase, plate, container, seal,
		                         provider_id, transporter_id, receiver_id, regulator_id,
		                         finalized, closed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			plate = EXCLUDED.plate,
			container = EXCLUDED.container,
			seal = EXCLUDED.seal,
			provider_id = EXCLUDED.provider_id,
			transporter_id = EXCLUDED.transporter_id,
			receiver_id = EXCLUDED.receiver_id,
			regulator_id = EXCLUDED.regulator_id,
			finalized = EXCLUDED.finalized,
			closed_at = EXCLUDED.closed_at,
			updated_at = EXCLUDED.updated_at`,
		sub.ID.String(), sub.QuestionnaireID.String(), string(sub.Phase),
		sub.Plate, sub.Container, sub.Seal,
		actorRef(sub.ProviderID), actorRef(sub.TransporterID), actorRef(sub.ReceiverID), actorRef(sub.RegulatorID),
		sub.Finalized, nullTime(sub.ClosedAt), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// PostgresAnswers implements AnswerStore on PostgreSQL.
type PostgresAnswers struct {
	db *sql.DB
}

func NewPostgresAnswers(db *sql.DB) *PostgresAnswers {
	return &PostgresAnswers{db: db}
}

const answerColumns = `id, submission_id, question_id, text_value, choice_id, file_path, provider_rows, ocr, author, saved_at`

func (s *PostgresAnswers) FindBySubmissionAndQuestion(ctx context.Context, submissionID id.SubmissionID, questionID id.QuestionID) (*models.Answer, error) {
	row := querierFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+answerColumns+` FROM answers
		WHERE submission_id = $1 AND question_id = $2`,
		submissionID.String(), questionID.String())
	answer, err := scanAnswer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find answer: %w", err)
	}
	return answer, nil
}

func (s *PostgresAnswers) ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]models.Answer, error) {
	rows, err := querierFor(ctx, s.db).QueryContext(ctx, `
		SELECT `+answerColumns+` FROM answers
		WHERE submission_id = $1 ORDER BY saved_at`, submissionID.String())
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []models.Answer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, *answer)
	}
	return out, rows.Err()
}

func (s *PostgresAnswers) Save(ctx context.Context, a *models.Answer) error {
	rowsJSON, err := json.Marshal(a.Rows)
	if err != nil {
		return fmt.Errorf("encode provider rows: %w", err)
	}
	var ocrJSON []byte
	if a.OCR != nil {
		if ocrJSON, err = json.Marshal(a.OCR); err != nil {
			return fmt.Errorf("encode ocr diagnostics: %w", err)
		}
	}

	_, err = querierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO answers (id, submission_id, question_id, text_value, choice_id, file_path, provider_rows, ocr, author, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (submission_id, question_id) DO UPDATE SET
			text_value = EXCLUDED.text_value,
			choice_id = EXCLUDED.choice_id,
			file_path = EXCLUDED.file_path,
			provider_rows = EXCLUDED.provider_rows,
			ocr = EXCLUDED.ocr,
			author = EXCLUDED.author,
			saved_at = EXCLUDED.saved_at`,
		a.ID.String(), a.SubmissionID.String(), a.QuestionID.String(),
		a.Text, choiceRef(a.ChoiceID), a.FilePath, rowsJSON, nullBytes(ocrJSON), a.Author, a.SavedAt)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *PostgresAnswers) DeleteByIDs(ctx context.Context, answerIDs []id.AnswerID) error {
	if len(answerIDs) == 0 {
		return nil
	}
	ids := make([]string, len(answerIDs))
	for i, aid := range answerIDs {
		ids[i] = aid.String()
	}
	_, err := querierFor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM answers WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	return nil
}

// PostgresQuestionnaires implements QuestionnaireStore and QuestionStore on
// PostgreSQL.
type PostgresQuestionnaires struct {
	db *sql.DB
}

func NewPostgresQuestionnaires(db *sql.DB) *PostgresQuestionnaires {
	return &PostgresQuestionnaires{db: db}
}

func (s *PostgresQuestionnaires) FindByID(ctx context.Context, questionnaireID id.QuestionnaireID) (*models.Questionnaire, error) {
	row := querierFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, title, version, timezone, created_at
		FROM questionnaires WHERE id = $1`, questionnaireID.String())

	var (
		qn  models.Questionnaire
		qid string
	)
	err := row.Scan(&qid, &qn.Title, &qn.Version, &qn.Timezone, &qn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find questionnaire: %w", err)
	}
	if qn.ID, err = id.ParseQuestionnaireID(qid); err != nil {
		return nil, err
	}
	return &qn, nil
}

func (s *PostgresQuestionnaires) ListQuestions(ctx context.Context, questionnaireID id.QuestionnaireID) ([]models.Question, error) {
	q := querierFor(ctx, s.db)

	rows, err := q.QueryContext(ctx, `
		SELECT id, questionnaire_id, text, kind, required, ord, semantic_tag, COALESCE(file_mode, '')
		FROM questions WHERE questionnaire_id = $1 ORDER BY ord`, questionnaireID.String())
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	index := make(map[id.QuestionID]int)
	for rows.Next() {
		var (
			question  models.Question
			qid, qnID string
		)
		if err := rows.Scan(&qid, &qnID, &question.Text, &question.Kind, &question.Required,
			&question.Order, &question.Tag, &question.FileMode); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if question.ID, err = id.ParseQuestionID(qid); err != nil {
			return nil, err
		}
		if question.QuestionnaireID, err = id.ParseQuestionnaireID(qnID); err != nil {
			return nil, err
		}
		index[question.ID] = len(questions)
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	choiceRows, err := q.QueryContext(ctx, `
		SELECT c.id, c.question_id, c.text, c.branch_to
		FROM choices c
		JOIN questions q ON q.id = c.question_id
		WHERE q.questionnaire_id = $1
		ORDER BY c.position`, questionnaireID.String())
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer choiceRows.Close()

	for choiceRows.Next() {
		var (
			choice   models.Choice
			cid, qid string
			branchTo sql.NullString
		)
		if err := choiceRows.Scan(&cid, &qid, &choice.Text, &branchTo); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		if choice.ID, err = id.ParseChoiceID(cid); err != nil {
			return nil, err
		}
		if choice.QuestionID, err = id.ParseQuestionID(qid); err != nil {
			return nil, err
		}
		if branchTo.Valid {
			target, err := id.ParseQuestionID(branchTo.String)
			if err != nil {
				return nil, err
			}
			choice.BranchTo = &target
		}
		if i, ok := index[choice.QuestionID]; ok {
			questions[i].Choices = append(questions[i].Choices, choice)
		}
	}
	return questions, choiceRows.Err()
}

func scanAnswer(row interface{ Scan(...any) error }) (*models.Answer, error) {
	var (
		a        models.Answer
		aid      string
		sid, qid string
		choiceID sql.NullString
		rowsJSON []byte
		ocrJSON  []byte
	)
	err := row.Scan(&aid, &sid, &qid, &a.Text, &choiceID, &a.FilePath, &rowsJSON, &ocrJSON, &a.Author, &a.SavedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParseSubmissionID(sid)
	if err != nil {
		return nil, err
	}
	a.SubmissionID = parsed
	if a.QuestionID, err = id.ParseQuestionID(qid); err != nil {
		return nil, err
	}
	answerID, err := id.ParseAnswerID(aid)
	if err != nil {
		return nil, err
	}
	a.ID = answerID

	if choiceID.Valid {
		cid, err := id.ParseChoiceID(choiceID.String)
		if err != nil {
			return nil, err
		}
		a.ChoiceID = &cid
	}
	if len(rowsJSON) > 0 {
		if err := json.Unmarshal(rowsJSON, &a.Rows); err != nil {
			return nil, fmt.Errorf("decode provider rows: %w", err)
		}
	}
	if len(ocrJSON) > 0 {
		a.OCR = &models.OCRDiagnostics{}
		if err := json.Unmarshal(ocrJSON, a.OCR); err != nil {
			return nil, fmt.Errorf("decode ocr diagnostics: %w", err)
		}
	}
	return &a, nil
}

func actorRef(ref *id.ActorID) any {
	if ref == nil {
		return nil
	}
	return ref.String()
}

func choiceRef(ref *id.ChoiceID) any {
	if ref == nil {
		return nil
	}
	return ref.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

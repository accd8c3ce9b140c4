package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

// ProviderUnit is the counting unit of a provider row.
type ProviderUnit string

const (
	UnitKG ProviderUnit = "KG"
	UnitUN ProviderUnit = "UN"
)

func (u ProviderUnit) IsValid() bool {
	return u == UnitKG || u == UnitUN
}

// ProviderRow is one delivery line of a provider question. A single answer
// holds the whole ordered row set; rows are keyed case-insensitively by name.
type ProviderRow struct {
	Name           string       `json:"name"`
	PurchaseOrder  string       `json:"purchase_order"`
	PalletCount    int          `json:"pallet_count"`
	ContainerCount int          `json:"container_count"`
	Unit           ProviderUnit `json:"unit"`
}

// ValidateComplete checks the row against the finalize contract: all fields
// present, counts non-negative, unit known. Partially filled rows are legal
// while the operator is still on the question; this check runs when the flow
// advances past it.
func (r ProviderRow) ValidateComplete() error {
	switch {
	case r.Name == "":
		return dErrors.New(dErrors.CodeValidation, "provider row is missing a name")
	case r.PurchaseOrder == "":
		return dErrors.Newf(dErrors.CodeValidation, "provider row %q is missing a purchase order", r.Name)
	case r.PalletCount < 0:
		return dErrors.Newf(dErrors.CodeValidation, "provider row %q has a negative pallet count", r.Name)
	case r.ContainerCount < 0:
		return dErrors.Newf(dErrors.CodeValidation, "provider row %q has a negative container count", r.Name)
	case !r.Unit.IsValid():
		return dErrors.Newf(dErrors.CodeValidation, "provider row %q has unknown unit %q", r.Name, r.Unit)
	}
	return nil
}

// EncodeProviderRows serializes a row set for the answer's value column.
func EncodeProviderRows(rows []ProviderRow) (string, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode provider rows: %w", err)
	}
	return string(b), nil
}

// DecodeProviderRows parses a serialized row set. An empty value decodes to
// an empty set.
func DecodeProviderRows(value string) ([]ProviderRow, error) {
	if value == "" {
		return nil, nil
	}
	var rows []ProviderRow
	if err := json.Unmarshal([]byte(value), &rows); err != nil {
		return nil, fmt.Errorf("decode provider rows: %w", err)
	}
	return rows, nil
}

// OCRDiagnostics is the verification payload recorded alongside an answer
// whose value came from text extraction.
type OCRDiagnostics struct {
	FieldKind  string  `json:"field_kind"`
	RawText    string  `json:"raw_text"`
	Normalized string  `json:"normalized"`
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
}

// FileUpload is an evidence image attached to a file question, held in
// memory only for the duration of one step.
type FileUpload struct {
	Name        string
	ContentType string
	Content     []byte
}

// AnswerValue is the typed input of one step. Exactly one of Text, ChoiceID,
// ActorID, or Rows is meaningful for a given question kind; File and OCR ride
// along for file questions.
type AnswerValue struct {
	Text     string
	ChoiceID id.ChoiceID
	ActorID  id.ActorID
	Rows     []ProviderRow
	File     *FileUpload
	OCR      *OCRDiagnostics
}

// Answer is the persisted value of one question within one submission.
// One logical answer exists per (submission, question) pair; provider rows
// are a composite value inside a single answer, not multiple answers.
type Answer struct {
	ID           id.AnswerID     `json:"id"`
	SubmissionID id.SubmissionID `json:"submission_id"`
	QuestionID   id.QuestionID   `json:"question_id"`
	Text         string          `json:"text,omitempty"`
	ChoiceID     *id.ChoiceID    `json:"choice_id,omitempty"`
	FilePath     string          `json:"file_path,omitempty"`
	Rows         []ProviderRow   `json:"rows,omitempty"`
	OCR          *OCRDiagnostics `json:"ocr,omitempty"`
	Author       string          `json:"author,omitempty"`
	SavedAt      time.Time       `json:"saved_at"`
}

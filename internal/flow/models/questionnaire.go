package models

import (
	"time"

	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

// QuestionKind is the input type a question expects.
type QuestionKind string

const (
	QuestionKindText   QuestionKind = "text"
	QuestionKindNumber QuestionKind = "number"
	QuestionKindDate   QuestionKind = "date"
	QuestionKindChoice QuestionKind = "choice"
	QuestionKindFile   QuestionKind = "file"
)

func (k QuestionKind) IsValid() bool {
	switch k {
	case QuestionKindText, QuestionKindNumber, QuestionKindDate, QuestionKindChoice, QuestionKindFile:
		return true
	}
	return false
}

// SemanticTag identifies what a question's answer means to the submission:
// a vehicle plate, a container code, a seal, or an actor relationship.
// Untagged questions carry no denormalized side effects.
type SemanticTag string

const (
	TagNone          SemanticTag = "none"
	TagPlaca         SemanticTag = "placa"
	TagContenedor    SemanticTag = "contenedor"
	TagPrecinto      SemanticTag = "precinto"
	TagProveedor     SemanticTag = "proveedor"
	TagTransportista SemanticTag = "transportista"
	TagReceptor      SemanticTag = "receptor"
	TagRegulador     SemanticTag = "regulador"
)

func (t SemanticTag) IsValid() bool {
	switch t {
	case TagNone, TagPlaca, TagContenedor, TagPrecinto, TagProveedor, TagTransportista, TagReceptor, TagRegulador:
		return true
	}
	return false
}

// IsActor reports whether the tag denotes an actor relationship that must be
// resolved against the catalog and denormalized onto the submission.
func (t SemanticTag) IsActor() bool {
	switch t {
	case TagProveedor, TagTransportista, TagReceptor, TagRegulador:
		return true
	}
	return false
}

// AllowsManualOverride reports whether an OCR value that failed validation may
// still be saved as free text. Plates have no check digit, so a misread is
// correctable by the operator; container and seal codes must re-verify.
func (t SemanticTag) AllowsManualOverride() bool {
	return t == TagPlaca
}

// FileMode controls how a file question treats its upload.
type FileMode string

const (
	// FileModeImageOCR stores the image and extracts text from it.
	FileModeImageOCR FileMode = "image_ocr"
	// FileModeOCROnly extracts text but discards the image after the call.
	FileModeOCROnly FileMode = "ocr_only"
	// FileModeImageOnly stores the image without text extraction.
	FileModeImageOnly FileMode = "image_only"
)

func (m FileMode) IsValid() bool {
	switch m {
	case FileModeImageOCR, FileModeOCROnly, FileModeImageOnly:
		return true
	}
	return false
}

// Questionnaire owns an ordered set of questions. It is immutable once a
// non-draft submission references it; changes fork a new version.
type Questionnaire struct {
	ID        id.QuestionnaireID `json:"id"`
	Title     string             `json:"title"`
	Version   int                `json:"version"`
	Timezone  string             `json:"timezone"`
	CreatedAt time.Time          `json:"created_at"`
}

// Question is one node of the questionnaire. Order is unique per
// questionnaire and drives default traversal; a choice's branch target
// overrides it.
type Question struct {
	ID              id.QuestionID      `json:"id"`
	QuestionnaireID id.QuestionnaireID `json:"questionnaire_id"`
	Text            string             `json:"text"`
	Kind            QuestionKind       `json:"kind"`
	Required        bool               `json:"required"`
	Order           int                `json:"order"`
	Tag             SemanticTag        `json:"semantic_tag"`
	FileMode        FileMode           `json:"file_mode,omitempty"`
	Choices         []Choice           `json:"choices,omitempty"`
}

// Choice is one selectable option of a choice question. A nil BranchTo means
// default next-by-order traversal.
type Choice struct {
	ID         id.ChoiceID    `json:"id"`
	QuestionID id.QuestionID  `json:"question_id"`
	Text       string         `json:"text"`
	BranchTo   *id.QuestionID `json:"branch_to,omitempty"`
}

// ChoiceByID returns the question's choice with the given id.
func (q Question) ChoiceByID(choiceID id.ChoiceID) (Choice, error) {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return c, nil
		}
	}
	return Choice{}, dErrors.Newf(dErrors.CodeNotFound, "choice %s does not belong to question %s", choiceID, q.ID)
}

// NewQuestionnaire constructs a questionnaire, validating invariants.
func NewQuestionnaire(qid id.QuestionnaireID, title, timezone string, now time.Time) (*Questionnaire, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "questionnaire title cannot be empty")
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return &Questionnaire{
		ID:        qid,
		Title:     title,
		Version:   1,
		Timezone:  timezone,
		CreatedAt: now,
	}, nil
}

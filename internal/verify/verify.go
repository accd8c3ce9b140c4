// Package verify normalizes and validates OCR-read field values: vehicle
// plates, ISO 6346 container codes, and security seal (precinto) codes.
package verify

import (
	dErrors "garita/pkg/domain-errors"
)

// FieldKind is the semantic kind of an OCR field.
type FieldKind string

const (
	FieldPlate     FieldKind = "plate"
	FieldContainer FieldKind = "container"
	FieldSeal      FieldKind = "seal"
)

// ParseFieldKind validates a field kind from the wire.
func ParseFieldKind(s string) (FieldKind, error) {
	switch FieldKind(s) {
	case FieldPlate, FieldContainer, FieldSeal:
		return FieldKind(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown field kind %q", s)
}

// Result is the outcome of one verification. Normalized is populated even
// when Valid is false (except for undetected seals) so the kiosk can show
// the operator what was read.
type Result struct {
	Field      FieldKind `json:"field_kind"`
	Normalized string    `json:"normalized_value"`
	Valid      bool      `json:"valid"`
	Confidence float64   `json:"confidence"`
	Raw        string    `json:"raw"`
}

// Verify routes raw text to the validator for the field kind.
func Verify(kind FieldKind, raw string) (Result, error) {
	switch kind {
	case FieldPlate:
		return NormalizePlate(raw), nil
	case FieldContainer:
		return ValidateContainer(raw), nil
	case FieldSeal:
		return ExtractSeal(raw), nil
	}
	return Result{}, dErrors.Newf(dErrors.CodeBadRequest, "unknown field kind %q", kind)
}

package verify

import (
	"regexp"
	"strings"
)

// plateShape is a plausibility check, not a national grammar: plates have no
// check digit, so shape is all there is to validate.
var plateShape = regexp.MustCompile(`^[A-Z0-9]{5,7}$`)

// NormalizePlate uppercases the raw text, strips whitespace and punctuation,
// and accepts the result when it looks like a plate: 5 to 7 alphanumerics
// with at least one letter and one digit.
func NormalizePlate(raw string) Result {
	normalized := stripToAlnum(raw)
	valid := looksLikePlate(normalized)
	confidence := 0.0
	if valid {
		confidence = 1.0
	}
	return Result{
		Field:      FieldPlate,
		Normalized: normalized,
		Valid:      valid,
		Confidence: confidence,
		Raw:        raw,
	}
}

func looksLikePlate(s string) bool {
	if !plateShape.MatchString(s) {
		return false
	}
	return strings.ContainsFunc(s, isUpperLetter) && strings.ContainsFunc(s, isDigit)
}

func stripToAlnum(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if isUpperLetter(r) || isDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isUpperLetter(r rune) bool { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool       { return r >= '0' && r <= '9' }

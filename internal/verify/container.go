package verify

import (
	"regexp"
)

// containerShape matches an ISO 6346 code: 4 owner/category letters followed
// by 6 serial digits and 1 check digit.
var containerShape = regexp.MustCompile(`^[A-Z]{4}[0-9]{7}$`)

// containerLetterValues maps owner-code letters to their numeric values.
// The sequence skips multiples of 11 so no letter value collides with the
// mod-11 step of the check digit.
var containerLetterValues = map[byte]int{
	'A': 10, 'B': 12, 'C': 13, 'D': 14, 'E': 15, 'F': 16, 'G': 17,
	'H': 18, 'I': 19, 'J': 20, 'K': 21, 'L': 23, 'M': 24, 'N': 25,
	'O': 26, 'P': 27, 'Q': 28, 'R': 29, 'S': 30, 'T': 31, 'U': 32,
	'V': 34, 'W': 35, 'X': 36, 'Y': 37, 'Z': 38,
}

// ValidateContainer normalizes the raw text and validates shape plus check
// digit. The normalized value is returned even when invalid so the kiosk can
// show the operator what was read.
func ValidateContainer(raw string) Result {
	normalized := stripToAlnum(raw)
	valid := containerShape.MatchString(normalized) &&
		containerCheckDigit(normalized) == int(normalized[10]-'0')
	confidence := 0.0
	if valid {
		confidence = 1.0
	}
	return Result{
		Field:      FieldContainer,
		Normalized: normalized,
		Valid:      valid,
		Confidence: confidence,
		Raw:        raw,
	}
}

// containerCheckDigit computes the ISO 6346 check digit of the code's first
// ten characters: each term weighted by 2^position, summed, mod 11 mod 10.
// The code must already match containerShape.
func containerCheckDigit(code string) int {
	sum := 0
	weight := 1
	for i := range 10 {
		var term int
		if i < 4 {
			term = containerLetterValues[code[i]]
		} else {
			term = int(code[i] - '0')
		}
		sum += term * weight
		weight *= 2
	}
	return (sum % 11) % 10
}

func looksLikeContainer(s string) bool {
	return containerShape.MatchString(s)
}

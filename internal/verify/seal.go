package verify

import (
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"

	pstrings "garita/pkg/platform/strings"
)

// sealAcceptThreshold is the minimum score at which the best candidate is
// reported as detected.
const sealAcceptThreshold = 0.70

// sealNoiseWords are labels that ride along in OCR output around the actual
// seal code.
var sealNoiseWords = map[string]struct{}{
	"PRECINTO":   {},
	"PRECINTOS":  {},
	"SEGURIDAD":  {},
	"SELLO":      {},
	"SELLOS":     {},
	"PLACA":      {},
	"CONTENEDOR": {},
}

// sealPrefixShape is the common seal layout: a short letter prefix followed
// by a digit run, e.g. TDM38816.
var sealPrefixShape = regexp.MustCompile(`^[A-Z]{1,4}[0-9]{4,10}$`)

var tokenSplit = regexp.MustCompile(`[^A-Z0-9]+`)

// ExtractSeal pulls the most plausible seal code out of noisy OCR text.
// Tokens are recombined across separators ("TDM 388 16" -> "TDM38816"),
// label words are dropped, and every candidate that looks like a plate, a
// container code, a bare number, or a bare word is rejected outright; seal
// codes are alphanumeric mixes and anything else is a misread of a
// different field.
func ExtractSeal(raw string) Result {
	result := Result{Field: FieldSeal, Raw: raw}

	best, bestScore := "", 0.0
	for _, candidate := range sealCandidates(raw) {
		score := scoreSealCandidate(candidate)
		if score > bestScore || (score == bestScore && betterCandidate(candidate, best)) {
			best, bestScore = candidate, score
		}
	}
	if bestScore < sealAcceptThreshold {
		return result // not detected
	}
	result.Normalized = best
	result.Valid = true
	result.Confidence = bestScore
	return result
}

// sealCandidates returns every concatenation of contiguous non-noise tokens.
func sealCandidates(raw string) []string {
	tokens := tokenSplit.Split(strings.ToUpper(raw), -1)
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, noise := sealNoiseWords[tok]; noise {
			continue
		}
		kept = append(kept, tok)
	}
	// OCR output for one field is short; cap pathological inputs.
	if len(kept) > 8 {
		kept = kept[:8]
	}

	var candidates []string
	for i := range kept {
		var run strings.Builder
		for j := i; j < len(kept); j++ {
			run.WriteString(kept[j])
			candidates = append(candidates, run.String())
		}
	}
	return pstrings.DedupeAndTrim(candidates)
}

// scoreSealCandidate scores a candidate in [0,1]. Negative filters force a
// zero; the remaining weight favors the typical seal length and the
// letters-then-digits layout.
func scoreSealCandidate(c string) float64 {
	if len(c) < 5 || len(c) > 15 {
		return 0
	}
	if govalidator.IsNumeric(c) || govalidator.IsAlpha(c) {
		return 0
	}
	if looksLikePlate(c) || looksLikeContainer(c) {
		return 0
	}

	score := 0.45
	switch l := len(c); {
	case l >= 7 && l <= 10:
		score += 0.25
	case l == 6 || l == 11 || l == 12:
		score += 0.10
	}
	if sealPrefixShape.MatchString(c) {
		score += 0.20
	}
	if score > 1 {
		score = 1
	}
	return score
}

// betterCandidate breaks score ties deterministically: longer wins, then
// lexicographic order.
func betterCandidate(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

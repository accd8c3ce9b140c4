//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSubmissionID checks that parsing never panics on arbitrary input
// and that accepted values round-trip unchanged.
func FuzzParseSubmissionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE submissions;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSubmissionID(input)
		if err == nil {
			roundTrip, err2 := ParseSubmissionID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures every ID type validates identically; they share the
// same underlying uuid parsing and must never drift.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errSubmission := ParseSubmissionID(input)
		_, errQuestionnaire := ParseQuestionnaireID(input)
		_, errQuestion := ParseQuestionID(input)
		_, errChoice := ParseChoiceID(input)
		_, errAnswer := ParseAnswerID(input)
		_, errActor := ParseActorID(input)

		accepted := errSubmission == nil
		for _, err := range []error{errQuestionnaire, errQuestion, errChoice, errAnswer, errActor} {
			if (err == nil) != accepted {
				t.Error("inconsistent parsing across id types")
			}
		}
	})
}

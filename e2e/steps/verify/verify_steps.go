package verify

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the main test context these steps need.
type TestContext interface {
	POST(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers field verification step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verifySteps{tc: tc}

	ctx.Step(`^I verify the (plate|container|seal) text "([^"]*)"$`, steps.verifyText)
	ctx.Step(`^the normalized value should be "([^"]*)"$`, steps.normalizedValueShouldBe)
}

type verifySteps struct {
	tc TestContext
}

func (s *verifySteps) verifyText(ctx context.Context, kind, raw string) error {
	return s.tc.POST("/verify/text", map[string]interface{}{
		"field_kind": kind,
		"raw":        raw,
	})
}

func (s *verifySteps) normalizedValueShouldBe(ctx context.Context, expected string) error {
	value, err := s.tc.GetResponseField("normalized_value")
	if err != nil {
		return err
	}
	if value != expected {
		return fmt.Errorf("expected normalized value %q, got %q", expected, value)
	}
	return nil
}

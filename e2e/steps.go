package e2e

import (
	"github.com/cucumber/godog"

	"garita/e2e/steps/common"
	"garita/e2e/steps/flow"
	"garita/e2e/steps/verify"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register questionnaire flow steps
	flow.RegisterSteps(ctx, tc)

	// Register field verification steps
	verify.RegisterSteps(ctx, tc)
}

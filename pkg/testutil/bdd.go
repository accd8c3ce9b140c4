package testutil

import "testing"

// Given, When, and Then name nested subtests in scenario style. The godog
// suite under e2e/ covers black-box scenarios; these helpers give unit tests
// the same readability without a framework.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}

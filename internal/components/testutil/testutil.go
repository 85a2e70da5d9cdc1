package testutil

import (
	"os"
	"testing"
)

// RequireEnv returns the value of variable or skips the test when it is
// unset, live tests are opt in.
func RequireEnv(t testing.TB, variable string) string {
	t.Helper()
	res, ok := os.LookupEnv(variable)
	if !ok {
		t.Skipf("env var '%s' must be set to run this test", variable)
	}
	return res
}

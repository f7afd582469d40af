package config_test

import (
	"os"
	"testing"
)

// unset removes keys for the duration of the test. t.Setenv is called first so
// the original values are restored on cleanup.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
}

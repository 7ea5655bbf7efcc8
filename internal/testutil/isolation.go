// Package testutil holds helpers shared by modcore tests.
package testutil

import (
	"os"
	"strings"
	"testing"
)

// trackedPrefixes lists the environment prefixes read by the config loader
// and the properties package.
var trackedPrefixes = []string{"MODCORE_", "APP_"}

// Isolate snapshots every environment variable with a tracked prefix and
// registers a t.Cleanup that restores them, unsetting any variable the test
// introduced. Tests that call t.Setenv do not need it; it exists for helpers
// that set variables through os.Setenv on behalf of the test.
func Isolate(t *testing.T) {
	t.Helper()

	snapshot := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if tracked(key) {
			snapshot[key] = value
		}
	}

	t.Cleanup(func() {
		for _, kv := range os.Environ() {
			key, _, _ := strings.Cut(kv, "=")
			if _, ok := snapshot[key]; !ok && tracked(key) {
				_ = os.Unsetenv(key)
			}
		}
		for k, v := range snapshot {
			_ = os.Setenv(k, v)
		}
	})
}

func tracked(key string) bool {
	for _, p := range trackedPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

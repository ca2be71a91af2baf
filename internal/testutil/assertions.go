package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the captured log output contains every fragment.
func AssertLogged(t *testing.T, logs string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		require.True(t, strings.Contains(logs, f), "expected log output to contain %q", f)
	}
}

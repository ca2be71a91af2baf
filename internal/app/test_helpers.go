package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cellgrid/internal/testutil"
)

// SetupAppTest creates an App with debug logging for system testing. It
// returns the App, its rendered output and its logs.
func SetupAppTest(t *testing.T, cfg Config) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	out, logs := &testutil.SafeBuffer{}, &testutil.SafeBuffer{}
	testApp := NewApp(out, logs, validated)
	t.Cleanup(func() { testutil.DumpLogs(t, logs) })

	return testApp, out, logs
}

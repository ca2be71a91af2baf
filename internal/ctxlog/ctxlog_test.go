package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLogger_RoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)
	require.True(t, Has(ctx))

	FromContext(ctx).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestFromContext_MissingLoggerDiscards(t *testing.T) {
	ctx := context.Background()
	assert.False(t, Has(ctx))

	logger := FromContext(ctx)
	require.NotNil(t, logger)
	// Must not panic.
	logger.Info("dropped")
}

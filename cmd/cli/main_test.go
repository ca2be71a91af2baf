package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cellgrid/internal/cli"
	"github.com/specialistvlad/cellgrid/internal/testutil"
)

func TestRun_RendersGrid(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{
		"grid.hcl":  `column "name" {}`,
		"rows.json": `[{"id": "a", "name": "Ada"}]`,
	})
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	err := run(out, errOut, []string{"--rows", filepath.Join(dir, "rows.json"), "--format", "json", filepath.Join(dir, "grid.hcl")})

	require.NoError(t, err, errOut.String())
	assert.Contains(t, out.String(), `"identity": "a"`)
	assert.Contains(t, out.String(), `"value": "Ada"`)
	assert.NotContains(t, out.String(), "level=", "logs stay off the rendered output")
}

func TestRun_LoadError(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{"grid.hcl": "column \"a\" {\n"})

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{filepath.Join(dir, "grid.hcl")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	errOut := &bytes.Buffer{}
	err := run(&bytes.Buffer{}, errOut, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, errOut.String(), "Usage:", "Expected help text to be printed")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

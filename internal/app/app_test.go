package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cellgrid/internal/coalescer"
	"github.com/specialistvlad/cellgrid/internal/grid"
	"github.com/specialistvlad/cellgrid/internal/testutil"
)

const columnsHCL = `
column "name" {
  header {
    label    = upper(field)
    sortable = true
  }
  cell {
    do_compute     = true
    computed_value = "${row.name} (${row.id})"
  }
}

column "ratio" {
  cell {
    type = "percent"
  }
}
`

const rowsYAML = `
rows:
  - id: 1
    name: root
    ratio: 0.5
    is_expand: true
  - id: 2
    name: child
    parent_name: 1
    ratio: 0.25
  - id: 3
    name: orphan
    parent_name: 99
`

// rendered is the subset of Output the tests read back.
type rendered struct {
	Sort struct {
		Field string `json:"field" yaml:"field"`
		Desc  bool   `json:"desc" yaml:"desc"`
	} `json:"sort" yaml:"sort"`
	Headers []struct {
		Field string `json:"field" yaml:"field"`
		Label any    `json:"label" yaml:"label"`
	} `json:"headers" yaml:"headers"`
	Rows []struct {
		Identity any `json:"identity" yaml:"identity"`
		Cells    []struct {
			Field string `json:"field" yaml:"field"`
			Value any    `json:"value" yaml:"value"`
		} `json:"cells" yaml:"cells"`
	} `json:"rows" yaml:"rows"`
}

func inputs(t *testing.T) (columns, rows string) {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{
		"columns/grid.hcl": columnsHCL,
		"rows.yaml":        rowsYAML,
	})
	return filepath.Join(dir, "columns"), filepath.Join(dir, "rows.yaml")
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{ColumnsPath: "columns"})
	require.NoError(t, err)
	assert.Equal(t, grid.DefaultKeyField, cfg.KeyField)
	assert.Equal(t, "yaml", cfg.Format)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, coalescer.DefaultPolicy(), cfg.Policy)

	cfg, err = NewConfig(Config{ColumnsPath: "columns", Policy: coalescer.Policy{BatchSize: 20}})
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Policy.MaxBatchSize, "the backlog size never falls below the batch size")

	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing columns", Config{}, "ColumnsPath"},
		{"bad format", Config{ColumnsPath: "c", Format: "xml"}, "Format"},
		{"bad log level", Config{ColumnsPath: "c", LogLevel: "loud"}, "LogLevel"},
		{"bad port", Config{ColumnsPath: "c", HealthcheckPort: 70000}, "HealthcheckPort"},
		{"negative tree index", Config{ColumnsPath: "c", TreeIndex: -1}, "TreeIndex"},
		{"small backlog", Config{ColumnsPath: "c", Policy: coalescer.Policy{BatchSize: 4, MaxBatchSize: 2}}, "MaxBatchSize"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRun_RendersYAML(t *testing.T) {
	columns, rows := inputs(t)
	a, out, logs := SetupAppTest(t, Config{ColumnsPath: columns, RowsPath: rows, SortField: "name"})

	require.NoError(t, a.Run(context.Background()))

	var got rendered
	require.NoError(t, yaml.Unmarshal([]byte(out.String()), &got))
	require.Len(t, got.Rows, 3)
	assert.Equal(t, "root (1)", got.Rows[0].Cells[0].Value)
	assert.Equal(t, "50%", got.Rows[0].Cells[1].Value)
	assert.Equal(t, "NAME", got.Headers[0].Label)
	assert.Equal(t, "name", got.Sort.Field)

	testutil.AssertLogged(t, logs.String(), "Grid inputs loaded.", "Grid derived.")
}

func TestRun_TreeAsJSON(t *testing.T) {
	columns, rows := inputs(t)
	a, out, _ := SetupAppTest(t, Config{ColumnsPath: columns, RowsPath: rows, UsingTree: true, Format: "json"})

	require.NoError(t, a.Run(context.Background()))

	var got rendered
	require.NoError(t, json.Unmarshal([]byte(out.String()), &got))
	var ids []any
	for _, r := range got.Rows {
		ids = append(ids, r.Identity)
	}
	assert.Equal(t, []any{1.0, 2.0, 3.0}, ids, "orphans become roots, expanded parents show children")
}

func TestRun_Errors(t *testing.T) {
	columns, rows := inputs(t)
	empty := testutil.WriteFiles(t, map[string]string{"readme.txt": "nothing"})

	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no columns", Config{ColumnsPath: empty}, "no columns found"},
		{"missing rows", Config{ColumnsPath: columns, RowsPath: filepath.Join(empty, "rows.yaml")}, "failed to load rows"},
		{"unknown sort", Config{ColumnsPath: columns, RowsPath: rows, SortField: "nope"}, "failed to sort"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, _, _ := SetupAppTest(t, tc.cfg)
			err := a.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	columns, rows := inputs(t)
	a, _, _ := SetupAppTest(t, Config{ColumnsPath: columns, RowsPath: rows})
	require.NoError(t, a.Run(context.Background()))

	families, err := a.Gatherer().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "cellgrid_rows_recomputed_total")
	assert.Contains(t, names, "cellgrid_coalescer_batches_total")
}

func TestHandler(t *testing.T) {
	a, _, _ := SetupAppTest(t, Config{ColumnsPath: "columns"})
	a.metrics.Row("computed")

	srv := httptest.NewServer(a.handler())
	t.Cleanup(srv.Close)
	client := &http.Client{Timeout: 5 * time.Second}

	get := func(path string) string {
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Equal(t, "OK\n", get("/health"))
	assert.Contains(t, get("/metrics"), `cellgrid_rows_recomputed_total{result="computed"} 1`)
}

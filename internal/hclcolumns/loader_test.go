package hclcolumns

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cellgrid/internal/confgraph"
	"github.com/specialistvlad/cellgrid/internal/grid"
	"github.com/specialistvlad/cellgrid/internal/memo"
	"github.com/specialistvlad/cellgrid/internal/testutil"
)

const accounts = `
column "name" {
  header {
    label    = upper(field)
    sortable = true
  }
  cell {
    do_compute     = true
    computed_value = "${row.first} ${row.last}"
    editable       = row.status != "closed"
    padding        = { left = 1 }
    actions        = [{ identity = "del", status = "always" }]
  }
}

column "ratio" {
  display_field = "ratio_label"
  cell {
    type            = "percent"
    percent_decimal = 1
  }
}
`

func parse(t *testing.T, src string) []grid.Column {
	t.Helper()
	cols, err := NewLoader().Parse(context.Background(), []byte(src), "columns.hcl")
	require.NoError(t, err)
	return cols
}

func TestParse_Columns(t *testing.T) {
	cols := parse(t, accounts)
	require.Len(t, cols, 2)

	name := cols[0]
	assert.Equal(t, "name", name.Field)
	assert.Equal(t, true, name.Header["sortable"])
	assert.Equal(t, map[string]any{"left": 1}, name.Cell["padding"])
	assert.Equal(t, []any{map[string]any{"identity": "del", "status": "always"}}, name.Cell["actions"])
	v, ok := name.Cell["computed_value"].(confgraph.Value)
	require.True(t, ok, "expressions with variables are derived")
	assert.True(t, v.IsDerived())

	ratio := cols[1]
	assert.Equal(t, "ratio_label", ratio.DisplayField)
	assert.Equal(t, "percent", ratio.Cell["type"])
	assert.Equal(t, 1, ratio.Cell["percent_decimal"])
	assert.Nil(t, ratio.Header)
}

func TestParse_DerivedValuesReadTheScope(t *testing.T) {
	cell := parse(t, accounts)[0].Cell
	n := confgraph.New(cell, map[string]any{
		"row": map[string]any{"first": "Ada", "last": "Lovelace", "status": "open"},
	})

	assert.Equal(t, "Ada Lovelace", n.Resolve("computed_value"))
	assert.True(t, n.Bool("editable"))
	assert.Empty(t, n.Diagnostics())
}

func TestParse_EvaluationFailuresAreDiagnostics(t *testing.T) {
	cols := parse(t, `
column "a" {
  cell {
    title = row.missing
  }
}
`)
	n := confgraph.New(cols[0].Cell, map[string]any{"row": map[string]any{"id": 1}})

	assert.Nil(t, n.Resolve("title"))
	diags := n.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "title", diags[0].Property)
	assert.Contains(t, diags[0].Err.Error(), "Unsupported attribute")
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unknown function", `column "a" { cell { title = nope(row.x) } }`, "unknown function nope"},
		{"syntax", `column "a" {`, "failed to parse HCL"},
		{"nested block", `column "a" { cell { padding { left = 1 } } }`, "in a.cell"},
		{"missing label", `column { }`, "label"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().Parse(context.Background(), []byte(tc.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParse_ExpressionTextIdentifiesDerivedValues(t *testing.T) {
	a := parse(t, accounts)
	b := parse(t, accounts)
	assert.Equal(t, memo.Hash(a, memo.DefaultDepth), memo.Hash(b, memo.DefaultDepth))

	changed := parse(t, `
column "name" {
  cell {
    computed_value = "${row.last} ${row.first}"
  }
}
`)
	same := parse(t, `
column "name" {
  cell {
    computed_value = "${row.first} ${row.last}"
  }
}
`)
	assert.NotEqual(t, memo.Hash(changed, memo.DefaultDepth), memo.Hash(same, memo.DefaultDepth))
}

func TestParse_DrivesTheGrid(t *testing.T) {
	ctx := context.Background()
	g := grid.New(ctx, grid.Options{})
	t.Cleanup(g.Close)
	g.SetColumns(parse(t, accounts))
	g.SetRows([]map[string]any{
		{"id": 1, "first": "Ada", "last": "Lovelace", "status": "open", "ratio": 0.5, "ratio_label": 0.256},
		{"id": 2, "first": "Alan", "last": "Turing", "status": "closed"},
	})

	views, err := g.Recompute(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	ada := views[0].Cells
	assert.Equal(t, "Ada Lovelace", ada[0].Value)
	assert.True(t, ada[0].Editable)
	assert.Equal(t, "padding-left: 1rem; line-height: normal; height: auto", ada[0].Style)
	assert.Equal(t, "del", ada[0].Actions[0].Identity)
	assert.Equal(t, "25.6%", ada[1].Value)
	assert.False(t, views[1].Cells[0].Editable)

	headers := g.Headers()
	assert.Equal(t, "NAME", headers[0].Label)
	assert.True(t, headers[0].Sortable)
}

func TestLoad_WalksDirectories(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"a/one.hcl": `column "first" {}`,
		"b/two.hcl": `column "second" {}` + "\n" + `column "third" {}`,
		"notes.txt": `column "ignored" {}`,
	})

	cols, err := NewLoader().Load(context.Background(), dir, filepath.Join(dir, "missing"), filepath.Join(dir, "a", "one.hcl"))
	require.NoError(t, err)

	var fields []string
	for _, c := range cols {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"first", "second", "third"}, fields)
}

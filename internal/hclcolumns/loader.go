// Package hclcolumns loads grid column definitions from HCL files.
//
// Every column is a labelled block. Attributes of its header and cell blocks
// become configuration entries: literal expressions are evaluated once at
// load time, expressions that reference variables become derived values that
// read those variables from the cell's configuration scope.
//
//	column "amount" {
//	  cell {
//	    type           = "percent"
//	    do_compute     = true
//	    computed_value = row.paid / row.total
//	    editable       = row.status != "closed"
//	  }
//	}
package hclcolumns

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/specialistvlad/cellgrid/internal/ctxlog"
	"github.com/specialistvlad/cellgrid/internal/fsutil"
	"github.com/specialistvlad/cellgrid/internal/grid"
)

// fileRoot decodes the top-level blocks of a column file.
type fileRoot struct {
	Columns []*columnBlock `hcl:"column,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

type columnBlock struct {
	Field        string     `hcl:"field,label"`
	DisplayField string     `hcl:"display_field,optional"`
	Header       *bodyBlock `hcl:"header,block"`
	Cell         *bodyBlock `hcl:"cell,block"`
}

type bodyBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Loader parses column files.
type Loader struct {
	functions map[string]function.Function
}

// NewLoader creates a loader with the standard function set.
func NewLoader() *Loader {
	return &Loader{functions: Functions()}
}

// Load parses every .hcl file under paths, in walk order, and returns the
// columns they declare. Paths that do not exist are skipped.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]grid.Column, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL column loader started.", "path_count", len(paths))

	files, err := fsutil.FindFilesByExtension(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var columns []grid.Column
	for _, path := range files {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
		}
		cols, err := l.decode(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, err)
		}
		columns = append(columns, cols...)
	}

	logger.Debug("HCL column loading complete.", "columns", len(columns))
	return columns, nil
}

// Parse decodes the columns of one in-memory file.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) ([]grid.Column, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	return l.decode(ctx, file)
}

func (l *Loader) decode(ctx context.Context, file *hcl.File) ([]grid.Column, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, l.evalContext(), &root); diags.HasErrors() {
		return nil, diags
	}

	columns := make([]grid.Column, 0, len(root.Columns))
	for _, cb := range root.Columns {
		col := grid.Column{Field: cb.Field, DisplayField: cb.DisplayField}
		var err error
		if col.Header, err = l.attributes(ctx, cb.Header, file.Bytes, cb.Field+".header"); err != nil {
			return nil, err
		}
		if col.Cell, err = l.attributes(ctx, cb.Cell, file.Bytes, cb.Field+".cell"); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// attributes compiles the attributes of an optional block into a
// configuration map.
func (l *Loader) attributes(ctx context.Context, block *bodyBlock, src []byte, owner string) (map[string]any, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("in %s: %w", owner, diags)
	}

	logger := ctxlog.FromContext(ctx).With("owner", owner)
	out := make(map[string]any, len(attrs))
	var errs []error
	for name, attr := range attrs {
		v, a, err := l.compile(attr.Expr, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("in %s.%s: %w", owner, name, err))
			continue
		}
		logger.Debug("Compiled column attribute.", "attribute", name, "references", a.references, "functions", a.functions)
		out[name] = v
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

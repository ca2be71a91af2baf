// Package rowsource reads grid rows from YAML or JSON documents.
//
// A document is either a sequence of mappings or a mapping whose "rows" key
// holds that sequence. Multi-document YAML streams concatenate their rows.
package rowsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cellgrid/internal/ctxlog"
)

// Stdin is the path that reads rows from standard input.
const Stdin = "-"

// ErrNotRows is returned for documents that hold no row sequence.
var ErrNotRows = errors.New("document is not a row list")

// Load reads the rows stored at path. An empty path yields no rows.
func Load(ctx context.Context, path string) ([]map[string]any, error) {
	logger := ctxlog.FromContext(ctx)
	switch path {
	case "":
		return nil, nil
	case Stdin:
		rows, err := Decode(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading rows from stdin: %w", err)
		}
		logger.Debug("Loaded rows.", "source", "stdin", "count", len(rows))
		return rows, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening row file: %w", err)
	}
	defer f.Close()

	rows, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading rows from %s: %w", path, err)
	}
	logger.Debug("Loaded rows.", "source", path, "count", len(rows))
	return rows, nil
}

// Decode reads every document of r and returns their rows in order.
func Decode(r io.Reader) ([]map[string]any, error) {
	dec := yaml.NewDecoder(r)
	var rows []map[string]any
	for doc := 0; ; doc++ {
		var raw any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		got, err := documentRows(raw)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		rows = append(rows, got...)
	}
}

func documentRows(raw any) ([]map[string]any, error) {
	switch x := normalize(raw).(type) {
	case nil:
		return nil, nil
	case []any:
		rows := make([]map[string]any, 0, len(x))
		for i, e := range x {
			row, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("row %d is %T, not a mapping: %w", i, e, ErrNotRows)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case map[string]any:
		list, ok := x["rows"]
		if !ok {
			return nil, fmt.Errorf("mapping without a rows key: %w", ErrNotRows)
		}
		return documentRows(list)
	default:
		return nil, fmt.Errorf("got %T: %w", x, ErrNotRows)
	}
}

// normalize turns the map[any]any that YAML produces for non-string keys
// into map[string]any, recursively.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}

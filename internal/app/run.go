package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cellgrid/internal/ctxlog"
	"github.com/specialistvlad/cellgrid/internal/grid"
	"github.com/specialistvlad/cellgrid/internal/rowsource"
	"github.com/specialistvlad/cellgrid/internal/tree"
)

// Output is the rendered view-state of a grid.
type Output struct {
	Sort    grid.Sort      `json:"sort" yaml:"sort"`
	Headers []grid.Header  `json:"headers" yaml:"headers"`
	Rows    []grid.RowView `json:"rows" yaml:"rows"`
}

// Run loads columns and rows, derives every visible row and writes the
// result to the App's output.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.startHealthcheckServer()
	defer func() {
		err = errors.Join(err, a.closeHealthcheckServer(ctx))
	}()

	columns, err := a.loader.Load(ctx, a.config.ColumnsPath)
	if err != nil {
		return fmt.Errorf("failed to load columns: %w", err)
	}
	if len(columns) == 0 {
		return fmt.Errorf("no columns found in %s", a.config.ColumnsPath)
	}
	rows, err := rowsource.Load(ctx, a.config.RowsPath)
	if err != nil {
		return fmt.Errorf("failed to load rows: %w", err)
	}
	a.logger.Info("Grid inputs loaded.", "columns", len(columns), "rows", len(rows))

	out, err := a.derive(ctx, columns, rows)
	if err != nil {
		return err
	}
	if err := a.render(out); err != nil {
		return fmt.Errorf("failed to render grid: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// derive runs one grid over the inputs and collects its view-state.
func (a *App) derive(ctx context.Context, columns []grid.Column, rows []map[string]any) (Output, error) {
	g := grid.New(ctx, grid.Options{
		KeyField:  a.config.KeyField,
		UsingTree: a.config.UsingTree,
		TreeIndex: a.config.TreeIndex,
		Tree:      tree.Options{CollapseDuplicates: a.config.GraphMode},
		Policy:    a.config.Policy,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
	defer g.Close()

	g.SetColumns(columns)
	g.SetRows(rows)
	if a.config.SortField != "" {
		if _, err := g.SetSort(a.config.SortField); err != nil {
			return Output{}, fmt.Errorf("failed to sort by %q: %w", a.config.SortField, err)
		}
	}

	if err := g.Refresh(ctx); err != nil {
		return Output{}, fmt.Errorf("failed to schedule rows: %w", err)
	}
	if err := g.Wait(ctx); err != nil {
		return Output{}, fmt.Errorf("failed waiting for rows: %w", err)
	}

	out := Output{Sort: g.Sort(), Headers: g.Headers(), Rows: g.View()}
	failures := 0
	for _, v := range out.Rows {
		for _, c := range v.Cells {
			failures += len(c.Diagnostics)
		}
	}
	for _, h := range out.Headers {
		failures += len(h.Diagnostics)
	}
	if failures > 0 {
		a.logger.Warn("Some properties failed to resolve.", "count", failures)
	}
	a.logger.Info("🏁 Grid derived.", "visible_rows", len(out.Rows))
	return out, nil
}

func (a *App) render(out Output) error {
	if a.config.Format == "json" {
		enc := json.NewEncoder(a.outW)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	enc := yaml.NewEncoder(a.outW)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

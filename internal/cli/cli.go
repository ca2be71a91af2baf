package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/cellgrid/internal/app"
	"github.com/specialistvlad/cellgrid/internal/coalescer"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("cellgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
cellgrid - Derives the view-state of an editable data grid.

Usage:
  cellgrid [options] [COLUMNS_PATH]

Arguments:
  COLUMNS_PATH
    Path to a single .hcl file or a directory containing .hcl column files.

Options:
`)
		flagSet.PrintDefaults()
	}

	def := coalescer.DefaultPolicy()
	columnsFlag := flagSet.String("columns", "", "Path to the column file or directory.")
	cFlag := flagSet.String("c", "", "Path to the column file or directory (shorthand).")
	rowsFlag := flagSet.String("rows", "", "Path to a YAML or JSON row file. '-' reads stdin.")
	keyFieldFlag := flagSet.String("key-field", "id", "Row field holding the row identity.")
	treeFlag := flagSet.Bool("tree", false, "Render rows as a tree using their parent field.")
	treeIndexFlag := flagSet.Int("tree-index", 0, "Index of the column carrying the tree controls.")
	graphFlag := flagSet.Bool("graph", false, "Collapse duplicate tree keys to their last occurrence.")
	sortFlag := flagSet.String("sort", "", "Sort state to render, by column field.")
	formatFlag := flagSet.String("format", "yaml", "Output format. Options: 'yaml' or 'json'.")
	batchFlag := flagSet.Int("batch-size", def.BatchSize, "Rows recomputed per batch.")
	maxBatchFlag := flagSet.Int("max-batch-size", def.MaxBatchSize, "Rows per batch while a backlog remains.")
	maxWaitFlag := flagSet.Duration("max-wait", def.MaxWait, "Longest wait on one batch.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *columnsFlag != "" {
		path = *columnsFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Columns path determined.", "path", path)

	if path == "" {
		slog.Debug("No columns path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(app.Config{
		ColumnsPath: path,
		RowsPath:    *rowsFlag,
		KeyField:    *keyFieldFlag,
		UsingTree:   *treeFlag,
		TreeIndex:   *treeIndexFlag,
		GraphMode:   *graphFlag,
		SortField:   *sortFlag,
		Policy: coalescer.Policy{
			BatchSize:    *batchFlag,
			MaxBatchSize: *maxBatchFlag,
			MaxWait:      *maxWaitFlag,
		},
		Format:          strings.ToLower(*formatFlag),
		LogFormat:       strings.ToLower(*logFormatFlag),
		LogLevel:        strings.ToLower(*logLevelFlag),
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

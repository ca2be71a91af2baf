package app

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/specialistvlad/cellgrid/internal/hclcolumns"
	"github.com/specialistvlad/cellgrid/internal/metrics"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	loader     *hclcolumns.Loader
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Rendered grids go to
// outW and logs to logW. Every App owns its logger and metrics registry.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		loader:   hclcolumns.NewLoader(),
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// Gatherer exposes the App's metrics registry.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.registry
}

package app

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/specialistvlad/cellgrid/internal/coalescer"
	"github.com/specialistvlad/cellgrid/internal/grid"
)

var validate = validator.New()

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ColumnsPath string `validate:"required"` // hcl files
	RowsPath    string // yaml or json, "-" for stdin

	KeyField  string `validate:"required"`
	UsingTree bool
	TreeIndex int `validate:"gte=0"`
	// GraphMode collapses duplicate tree keys to their last occurrence.
	GraphMode bool
	SortField string

	Policy coalescer.Policy

	Format          string `validate:"oneof=yaml json"`
	LogFormat       string `validate:"oneof=text json"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	HealthcheckPort int    `validate:"gte=0,lte=65535"`
}

// NewConfig fills unset fields with their defaults and validates the result.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.KeyField == "" {
		cfg.KeyField = grid.DefaultKeyField
	}
	if cfg.Format == "" {
		cfg.Format = "yaml"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	def := coalescer.DefaultPolicy()
	if cfg.Policy.BatchSize == 0 {
		cfg.Policy.BatchSize = def.BatchSize
	}
	if cfg.Policy.MaxBatchSize == 0 {
		cfg.Policy.MaxBatchSize = max(def.MaxBatchSize, cfg.Policy.BatchSize)
	}
	if cfg.Policy.MaxWait == 0 {
		cfg.Policy.MaxWait = def.MaxWait
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

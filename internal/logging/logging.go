// Package logging builds the zap loggers used by the collector and publisher.
package logging

import (
	"go.uber.org/zap"
)

// Config holds logging configuration
type Config struct {
	Level       string            `mapstructure:"level"`
	Format      string            `mapstructure:"format"` // "json" or "console"
	OutputPath  string            `mapstructure:"output_path"`
	Fields      map[string]string `mapstructure:"fields"`
	Development bool              `mapstructure:"development"`
}

// New creates a structured logger from config.
func New(config Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if config.Format == "json" {
		zapConfig.Encoding = "json"
	} else {
		zapConfig.Encoding = "console"
	}

	if config.OutputPath != "" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	} else {
		zapConfig.OutputPaths = []string{"stderr"}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	fields := make([]zap.Field, 0, len(config.Fields))
	for k, v := range config.Fields {
		fields = append(fields, zap.String(k, v))
	}
	return logger.With(fields...), nil
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// Stage logs row accounting for one pipeline stage.
func Stage(logger *zap.Logger, stage string, rowsIn, rowsOut int) {
	logger.Info("stage complete",
		zap.String("stage", stage),
		zap.Int("rows_in", rowsIn),
		zap.Int("rows_out", rowsOut),
		zap.Int("dropped", rowsIn-rowsOut),
	)
}

// DataQuality logs values that could not be resolved against a reference table.
// Nothing is logged when count is zero.
func DataQuality(logger *zap.Logger, entity, issue string, count int) {
	if count == 0 {
		return
	}
	logger.Warn("data quality issue",
		zap.String("entity", entity),
		zap.String("issue", issue),
		zap.Int("count", count),
		zap.String("type", "data_quality"),
	)
}

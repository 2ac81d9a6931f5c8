// Package observability constructs the engine's ambient logging, tracing,
// and metrics stack.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig configures the structured logger.
type LoggerConfig struct {
	// Environment selects the base zap config: "production" uses JSON
	// output, anything else uses a human-readable console encoder. The
	// level is always Level, whatever the environment.
	Environment string
	Level       zapcore.Level
}

// NewLogger constructs a *zap.Logger. Sugared logging is derived from
// this via .Sugar() at the call site rather than constructed here,
// since most of the engine's services log structured fields directly.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.Level)
	return zapCfg.Build()
}

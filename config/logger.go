package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON production logger, or a console logger for local
// and development environments. LogLevel overrides the environment default.
func NewLogger(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	switch cfg.AppEnv {
	case "local", "development":
		zcfg = zap.NewDevelopmentConfig()
	default:
		zcfg = zap.NewProductionConfig()
	}

	if strings.TrimSpace(cfg.LogLevel) != "" {
		var level zapcore.Level
		if err := level.Set(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	zcfg.DisableStacktrace = true

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("env", cfg.AppEnv)), nil
}

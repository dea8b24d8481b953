package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process logger: JSON for production, console otherwise.
// An empty level keeps the preset's default.
func New(env, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if IsProduction(env) {
		cfg = zap.NewProductionConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// IsProduction reports whether env names a production deployment.
func IsProduction(env string) bool {
	return env == "production" || env == "prod"
}

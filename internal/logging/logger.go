// Package logging builds the service's zap loggers.
package logging

import (
	"go.uber.org/zap"
)

// NewNamed creates a named logger tuned for the given environment:
// human-readable development output in development, sampled JSON otherwise.
func NewNamed(env, name string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(name), nil
}

// Package logger builds the process-wide zap logger.
package logger

import "go.uber.org/zap"

// New returns a production JSON logger, or a human-readable development
// logger for any other environment.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

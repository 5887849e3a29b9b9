// Package logging builds the process-wide structured logger. Every
// long-lived component receives a *zap.Logger explicitly; nothing reads a
// package-global logger during a scan.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger for the given environment.
// "development" gets human-readable console output; anything else gets
// JSON suitable for log aggregation.
func New(environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ForJob returns a child logger pre-tagged with the job and tenant
// identifiers callers will want on every line for the life of the scan.
func ForJob(base *zap.Logger, tenantID, jobID string, scanType string) *zap.Logger {
	return base.With(
		zap.String("tenant_id", tenantID),
		zap.String("job_id", jobID),
		zap.String("scan_type", scanType),
	)
}

// Package report builds loggers and counts the problems a run reports.
package report

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a logger writing to stderr at the named level, as JSON
// or as console text.
func NewLogger(level string, json bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	if json {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

// Reporter logs skipped constructs and errors and keeps count of them.
type Reporter struct {
	log      *zap.Logger
	warnings int
	errors   int
}

// New returns a reporter writing to log. A nil log discards everything.
func New(log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{log: log}
}

func (r *Reporter) Logger() *zap.Logger {
	return r.log
}

func (r *Reporter) Warn(msg string, fields ...zap.Field) {
	r.warnings++
	r.log.Warn(msg, fields...)
}

func (r *Reporter) Error(msg string, fields ...zap.Field) {
	r.errors++
	r.log.Error(msg, fields...)
}

func (r *Reporter) Warnings() int {
	return r.warnings
}

func (r *Reporter) Errors() int {
	return r.errors
}

func (r *Reporter) HasErrors() bool {
	return r.errors > 0
}

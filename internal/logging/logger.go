// Package logging provides the structured logger used across the
// verification pipeline service.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger type used throughout the service.
type Logger = *logrus.Logger

// Fields represents structured logging fields.
type Fields = logrus.Fields

// Level represents a log level.
type Level = logrus.Level

// Log levels re-exported for callers that don't want a logrus import.
const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// NewLogger creates a JSON-formatted logger reading its level from LOG_LEVEL.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(levelFromEnv())
	return logger
}

// NewLoggerWithService creates a logger tagged with a service field.
func NewLoggerWithService(serviceName string) *logrus.Logger {
	base := NewLogger()
	base.AddHook(serviceHook{service: serviceName})
	return base
}

// serviceHook adds the service field to every entry.
type serviceHook struct{ service string }

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	e.Data["service"] = h.service
	return nil
}

func levelFromEnv() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

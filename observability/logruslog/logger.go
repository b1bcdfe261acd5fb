// Package logruslog adapts logrus to the core.Logger interface.
package logruslog

import (
	"github.com/sirupsen/logrus"

	"github.com/strgat/go-asyncloop/core"
)

// Logger forwards core.Logger calls to a logrus logger.
type Logger struct {
	logger logrus.FieldLogger
}

var _ core.Logger = (*Logger)(nil)

// New creates a core.Logger backed by the given logrus logger. A nil logger
// falls back to the logrus standard logger.
func New(logger logrus.FieldLogger) *Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Debug(msg string, fields ...core.Field) {
	l.entry(fields).Debug(msg)
}

func (l *Logger) Info(msg string, fields ...core.Field) {
	l.entry(fields).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...core.Field) {
	l.entry(fields).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...core.Field) {
	l.entry(fields).Error(msg)
}

func (l *Logger) entry(fields []core.Field) logrus.FieldLogger {
	if len(fields) == 0 {
		return l.logger
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return l.logger.WithFields(data)
}

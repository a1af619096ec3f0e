package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/prorata-io/prorata/internal/logger"
)

// watermillLogger adapts our logger to watermill's LoggerAdapter interface
type watermillLogger struct {
	log *logger.Logger
}

// NewWatermillLogger returns a watermill.LoggerAdapter backed by our logger.
func NewWatermillLogger(log *logger.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: log}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Errorw(msg, append([]interface{}{"error", err}, fieldsToKV(fields)...)...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Infow(msg, fieldsToKV(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debugw(msg, fieldsToKV(fields)...)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debugw(msg, fieldsToKV(fields)...)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return l
}

func fieldsToKV(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

package log

import (
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger replaces the package logger. Pass the host application's zap
// logger before doing any real work; the default is a nop.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// NewDevLogger installs a development logger, for CLI and test use.
func NewDevLogger() *zap.Logger {
	l, _ := zap.NewDevelopment()
	logger = l
	return l
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

func Sync() {
	_ = logger.Sync()
}

package logger

import (
	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
)

// Logger is the eigensdk-go logger, re-exported so packages of this module
// only need one import for logging.
type Logger = sdklogging.Logger

// New builds a zap backed logger for the given environment
// ("development" or "production").
func New(environment sdklogging.LogLevel) (Logger, error) {
	return sdklogging.NewZapLogger(environment)
}

// nopLogger drops every message. It lets library code log unconditionally
// when the caller did not hand in a logger.
type nopLogger struct{}

func (l nopLogger) Debug(msg string, tags ...any)             {}
func (l nopLogger) Info(msg string, tags ...any)              {}
func (l nopLogger) Warn(msg string, tags ...any)              {}
func (l nopLogger) Error(msg string, tags ...any)             {}
func (l nopLogger) Fatal(msg string, tags ...any)             {}
func (l nopLogger) Debugf(template string, args ...any)       {}
func (l nopLogger) Infof(template string, args ...any)        {}
func (l nopLogger) Warnf(template string, args ...any)        {}
func (l nopLogger) Errorf(template string, args ...any)       {}
func (l nopLogger) Fatalf(template string, args ...any)       {}
func (l nopLogger) With(tags ...any) Logger                   { return l }
func (l nopLogger) WithComponent(componentName string) Logger { return l }
func (l nopLogger) WithName(name string) Logger               { return l }
func (l nopLogger) WithServiceName(serviceName string) Logger { return l }
func (l nopLogger) WithHostName(hostName string) Logger       { return l }
func (l nopLogger) Sync() error                               { return nil }

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// EnsureLogger returns l, or a no-op logger when l is nil.
func EnsureLogger(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

package resque

import (
	"fmt"
	"log"
	"os"
)

// Logger is the logging surface used throughout the worker. Call sites use
// printf-style templates, e.g. Info("reserved job %s from queue %s", id, q).
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})
}

// StdLogger is a simple logger using the standard library.
type StdLogger struct {
	logger *log.Logger
}

// NewStdLogger creates a new standard logger.
func NewStdLogger() *StdLogger {
	return &StdLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logger.Print("[DEBUG] " + fmt.Sprintf(format, args...))
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logger.Print("[INFO] " + fmt.Sprintf(format, args...))
}

func (l *StdLogger) Warn(format string, args ...interface{}) {
	l.logger.Print("[WARN] " + fmt.Sprintf(format, args...))
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logger.Print("[ERROR] " + fmt.Sprintf(format, args...))
}

func (l *StdLogger) Fatal(format string, args ...interface{}) {
	l.logger.Fatal("[FATAL] " + fmt.Sprintf(format, args...))
}

// nopLogger discards everything; used as a safe default when a component
// is built without an explicit Logger, e.g. in unit tests.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

package logging

import (
	"io"
	"log"
	"os"
)

// Logger is a leveled wrapper over the standard library logger. One instance is
// built at startup and handed to every component that logs.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errLogger   *log.Logger
	debugLogger *log.Logger
	DebugMode   bool
}

// New writes INFO and DEBUG lines to out and WARN/ERROR lines to errOut.
func New(out, errOut io.Writer, debug bool) *Logger {
	return &Logger{
		infoLogger:  log.New(out, "INFO: ", log.LstdFlags|log.LUTC),
		warnLogger:  log.New(errOut, "WARN: ", log.LstdFlags|log.LUTC),
		errLogger:   log.New(errOut, "ERROR: ", log.LstdFlags|log.LUTC),
		debugLogger: log.New(out, "DEBUG: ", log.LstdFlags|log.LUTC),
		DebugMode:   debug,
	}
}

// Default logs to stdout/stderr.
func Default(debug bool) *Logger {
	return New(os.Stdout, os.Stderr, debug)
}

// Discard drops everything. Used by tests.
func Discard() *Logger {
	return New(io.Discard, io.Discard, false)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.errLogger.Printf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.warnLogger.Printf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.infoLogger.Printf(format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.DebugMode {
		l.debugLogger.Printf(format, args...)
	}
}

// Fatalf logs at ERROR level and exits the process.
func (l *Logger) Fatalf(format string, args ...any) {
	l.errLogger.Fatalf(format, args...)
}

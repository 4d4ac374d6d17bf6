package logger

import (
	"fmt"
	"log"
	"os"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger provides structured logging
type Logger struct {
	level  LogLevel
	logger *log.Logger
	tag    string
}

var defaultLogger *Logger

func init() {
	defaultLogger = New(INFO)
}

// New creates a new logger instance
func New(level LogLevel) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// WithTag returns a derived Logger that stamps every line it emits with tag
// (e.g. an Index's diagnostic UUID), sharing the parent's level and output
// so multiple tagged instances sharing a process can be told apart in the
// log stream without each call site formatting the tag into its message by
// hand.
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{level: l.level, logger: l.logger, tag: tag}
}

// SetLevel sets the global log level
func SetLevel(level LogLevel) {
	defaultLogger.level = level
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log("DEBUG", format, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= INFO {
		l.log("INFO", format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= WARN {
		l.log("WARN", format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level <= ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *Logger) log(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.tag != "" {
		l.logger.Output(3, fmt.Sprintf("[%s][%s] %s", level, l.tag, msg))
	} else {
		l.logger.Output(3, fmt.Sprintf("[%s] %s", level, msg))
	}
}
// Package logger provides structured logging for the export migration
// pipeline. It wraps logrus so call sites can pass flat key/value pairs.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with variadic key/value convenience methods
type Logger struct {
	*logrus.Logger
}

// New creates a logger with the given level, format and output destination.
// Output may be "stdout", "stderr" or a file path.
func New(level, format, output string) *Logger {
	log := logrus.New()

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.SetOutput(resolveOutput(output))

	return &Logger{Logger: log}
}

// resolveOutput maps the configured output name to a writer. Unknown values
// are treated as file paths; if the file cannot be opened, stderr is used.
func resolveOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return os.Stderr
		}
		return file
	}
}

// Fatal logs a fatal message with optional key/value fields and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.WithFields(argsToFields(args...)).Fatal(msg)
	} else {
		l.Logger.Fatal(msg)
	}
}

// Error logs an error message with optional key/value fields
func (l *Logger) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.WithFields(argsToFields(args...)).Error(msg)
	} else {
		l.Logger.Error(msg)
	}
}

// Warn logs a warning message with optional key/value fields
func (l *Logger) Warn(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.WithFields(argsToFields(args...)).Warn(msg)
	} else {
		l.Logger.Warn(msg)
	}
}

// Info logs an info message with optional key/value fields
func (l *Logger) Info(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.WithFields(argsToFields(args...)).Info(msg)
	} else {
		l.Logger.Info(msg)
	}
}

// Debug logs a debug message with optional key/value fields
func (l *Logger) Debug(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.WithFields(argsToFields(args...)).Debug(msg)
	} else {
		l.Logger.Debug(msg)
	}
}

// argsToFields converts flat key/value pairs to logrus Fields.
// Usage: logger.Info("message", "table", name, "files", count)
func argsToFields(args ...interface{}) logrus.Fields {
	fields := make(logrus.Fields)

	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			key := fmt.Sprintf("%v", args[i])
			fields[key] = args[i+1]
		}
	}

	return fields
}

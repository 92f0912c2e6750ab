package utils

import (
	"log"
	"os"
	"strconv"
	"time"
)

// LogLevel controls which log calls actually emit output.
type LogLevel uint8

const (
	logEnv = "QUICCORE_LOG_LEVEL"

	// LogLevelNothing disables logging entirely.
	LogLevelNothing LogLevel = 0
	// LogLevelError enables error logs.
	LogLevelError LogLevel = 1
	// LogLevelInfo enables info logs (connection/session lifecycle events).
	LogLevelInfo LogLevel = 2
	// LogLevelDebug enables debug logs (packet and frame contents).
	LogLevelDebug LogLevel = 3
)

var (
	logLevel   = LogLevelNothing
	timeFormat = ""
)

// SetLogLevel sets the package-wide log level.
func SetLogLevel(level LogLevel) {
	logLevel = level
}

// SetLogTimeFormat sets the format used to stamp log lines; an empty
// string disables timestamps.
func SetLogTimeFormat(format string) {
	log.SetFlags(0)
	timeFormat = format
}

// Debugf logs at LogLevelDebug.
func Debugf(format string, args ...interface{}) {
	if logLevel == LogLevelDebug {
		logMessage(format, args...)
	}
}

// Infof logs at LogLevelInfo or above.
func Infof(format string, args ...interface{}) {
	if logLevel >= LogLevelInfo {
		logMessage(format, args...)
	}
}

// Errorf logs at LogLevelError or above.
func Errorf(format string, args ...interface{}) {
	if logLevel >= LogLevelError {
		logMessage(format, args...)
	}
}

func logMessage(format string, args ...interface{}) {
	if len(timeFormat) > 0 {
		log.Printf(time.Now().Format(timeFormat)+" "+format, args...)
		return
	}
	log.Printf(format, args...)
}

// Debug reports whether the log level is LogLevelDebug.
func Debug() bool {
	return logLevel == LogLevelDebug
}

func init() {
	readLoggingEnv()
}

func readLoggingEnv() {
	env := os.Getenv(logEnv)
	if env == "" {
		return
	}
	level, err := strconv.Atoi(env)
	if err != nil {
		return
	}
	logLevel = LogLevel(level)
}

// Logger is the narrow logging capability the session accepts from its
// caller, matching what the Logger collaborator in the external
// interface requires: structured level+message emission for diagnostics.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debug() bool
}

// DefaultLogger forwards to the package-level leveled logger.
type DefaultLogger struct{}

func (DefaultLogger) Debugf(format string, args ...interface{}) { Debugf(format, args...) }
func (DefaultLogger) Infof(format string, args ...interface{})  { Infof(format, args...) }
func (DefaultLogger) Errorf(format string, args ...interface{}) { Errorf(format, args...) }
func (DefaultLogger) Debug() bool                                { return Debug() }

package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.Formatter = NewFormatter("")
}

// Get returns the process wide logger
func Get() *logrus.Logger {
	return log
}

// Configure sets level and output format of the process wide logger
func Configure(level, format string) *logrus.Logger {
	log.Level = ParseLevel(level)
	log.Formatter = NewFormatter(format)
	return log
}

// ParseLevel falls back to info for unknown levels
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// NewFormatter returns json formatter for "json", text formatter otherwise
func NewFormatter(format string) logrus.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{}
	default:
		return &logrus.TextFormatter{FullTimestamp: true}
	}
}

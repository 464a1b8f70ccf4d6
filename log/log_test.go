package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatter(t *testing.T) {
	textFormatter, ok := NewFormatter("").(*logrus.TextFormatter)
	assert.NotNil(t, textFormatter)
	assert.True(t, ok)

	jsonFormatter, ok := NewFormatter("JSON").(*logrus.JSONFormatter)
	assert.NotNil(t, jsonFormatter)
	assert.True(t, ok)
}

func TestParseLevel(t *testing.T) {
	for level, expected := range map[string]logrus.Level{
		"error": logrus.ErrorLevel,
		"WARN":  logrus.WarnLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"":      logrus.InfoLevel,
		"trace": logrus.InfoLevel,
	} {
		assert.Equal(t, expected, ParseLevel(level), level)
	}
}

func TestConfigure(t *testing.T) {
	defer Configure("info", "")

	logger := Configure("debug", "json")
	assert.Same(t, Get(), logger)
	assert.Equal(t, logrus.DebugLevel, logger.Level)

	out := logger.Out
	defer func() { logger.Out = out }()

	buf := &bytes.Buffer{}
	logger.Out = buf

	logger.WithField("endpoint", "http://countries").WithError(errors.New("boom")).Error("introspection failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http://countries", entry["endpoint"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "introspection failed", entry["msg"])
}

func BenchmarkFormatter(b *testing.B) {
	b.Run("json", func(b *testing.B) {
		benchmarkFormatter(b, "json")
	})
	b.Run("default", func(b *testing.B) {
		benchmarkFormatter(b, "")
	})
}

func benchmarkFormatter(b *testing.B, formatter string) {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.Formatter = NewFormatter(formatter)

	err := errors.New("Test error value")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i <= b.N; i++ {
		logger.WithError(err).WithField("prefix", "test").Info("This is a typical log message")
	}
}

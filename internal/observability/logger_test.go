// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -- Test Helper Functions --

func newBuffer() (*bytes.Buffer, zapcore.WriteSyncer) {
	buf := &bytes.Buffer{}
	return buf, zapcore.AddSync(buf)
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, ws := newBuffer()

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, ws)
		GetLogger().Info("session opened")

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "session opened")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, "TestService.")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, ws := newBuffer()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, ws)
		GetLogger().Warn("extraction incomplete", zap.String("field", "accessCode"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "extraction incomplete", entry["msg"])
		assert.Equal(t, "accessCode", entry["field"])
	})

	t.Run("should respect the configured level", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, ws := newBuffer()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, ws)
		GetLogger().Info("hidden")
		GetLogger().Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		_, ws := newBuffer()
		logFile := filepath.Join(t.TempDir(), "crawler.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: logFile, MaxSize: 1}, ws)
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, ws := newBuffer()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, ws)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, ws)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("component loggers are named children", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, ws := newBuffer()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "svc"}, ws)
		Component("browser").Info("launched")

		assert.Contains(t, buf.String(), `"logger":"svc.browser"`)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "unbounded text", Truncate("unbounded text", 0))
	assert.Equal(t, "abc...(truncated)", Truncate("abcdef", 3))

	// "é" is two bytes; cutting inside it must back off to the rune start.
	assert.Equal(t, "C...(truncated)", Truncate("Cé", 2))
}

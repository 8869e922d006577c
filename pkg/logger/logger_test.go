package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := NewWithConfig(LoggerConfig{FilePath: path, Level: "debug"})

	l.Info("gateway", "upload finished", map[string]interface{}{"chunks": 3})
	l.Debug("gateway", "probe", nil)
	require.NoError(t, l.logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "upload finished", entry["message"])
	assert.Equal(t, "gateway", entry["module"])
	assert.Equal(t, float64(3), entry["details"].(map[string]interface{})["chunks"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := NewWithConfig(LoggerConfig{FilePath: path, Level: "warn"})

	l.Info("session", "ignored", nil)
	l.Warn("session", "kept", nil)
	require.NoError(t, l.logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ignored")
	assert.Contains(t, string(data), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Error("x", "y", map[string]interface{}{"error": "boom"})
	assert.NoError(t, l.Sync())
}

package debuglog

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"OFF", levelOff},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), tt.in)
	}
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Setup(slog.LevelInfo, path))
	defer Close()

	Logger().Info("hello", "key", "value")
	Logger().Debug("filtered out")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.NotContains(t, string(data), "filtered out")
}

func TestSetupOffDiscardsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup(levelOff, path))
	defer Close()

	Logger().Error("should not land anywhere")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "OFF must not even create the file")
}

func TestLoggerSafeBeforeSetup(t *testing.T) {
	require.NoError(t, Close())
	assert.NotPanics(t, func() {
		Logger().Info("no destination yet")
	})
}

func TestCloseResetsLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup(slog.LevelInfo, path))
	require.NoError(t, Close())

	Logger().Info("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "after close"))
}

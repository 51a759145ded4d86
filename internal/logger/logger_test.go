package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"llmgate/internal/models"
	"llmgate/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONStdout(t *testing.T) {
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	log, closer, err := Setup(cfg, version.Info{Version: "test"})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Nil(t, closer)
}

func TestSetup_TextStderr(t *testing.T) {
	cfg := models.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}

	log, closer, err := Setup(cfg, version.Info{})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Nil(t, closer)
}

func TestSetup_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llmgate.log")
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: path}

	log, closer, err := Setup(cfg, version.Info{})
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	log.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestSetup_FileOutputRequiresPath(t *testing.T) {
	cfg := models.LoggingConfig{Level: "info", Format: "json", Output: "file"}

	_, _, err := Setup(cfg, version.Info{})
	assert.Error(t, err)
}

func TestSetup_InvalidLevel(t *testing.T) {
	cfg := models.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}

	_, _, err := Setup(cfg, version.Info{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		level, err := parseLevel(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, level)
	}
}

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_ConsoleLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.log")

	logger, err := New(Config{Level: "info", Format: "console", OutputPaths: []string{path}})
	require.NoError(t, err)

	Named(logger, "extract").Info("extracted", zap.Int("rows", 7043))
	Named(logger, "extract").Debug("hidden")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	assert.Contains(t, lines[0], " - INFO - extract - extracted")
	assert.Contains(t, lines[0], `"rows": 7043`)
}

func TestNew_JSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.json")

	logger, err := New(Config{Level: "debug", Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Named("stage").Debug("coerced", zap.Int("blanks", 11))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"debug"`)
	assert.Contains(t, string(data), `"logger":"stage"`)
	assert.Contains(t, string(data), `"blanks":11`)
}

func TestGet_BeforeInitIsUsable(t *testing.T) {
	mu.Lock()
	saved := globalLogger
	globalLogger = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		globalLogger = saved
		mu.Unlock()
	})

	assert.NotPanics(t, func() {
		Named(nil, "pipeline").Info("no init yet")
	})
	assert.NoError(t, Sync())
}

func TestInit_InstallsGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.log")

	logger, err := Init(Config{Level: "warn", OutputPaths: []string{path}})
	require.NoError(t, err)
	assert.Same(t, logger, Get())

	zap.L().Warn("via zap globals")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN - via zap globals")
}

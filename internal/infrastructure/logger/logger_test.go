package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/erp/ledgersync/internal/infrastructure/config"
)

func TestFromSettings(t *testing.T) {
	t.Run("empty settings use defaults", func(t *testing.T) {
		cfg := FromSettings(config.LogConfig{})
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("settings override defaults", func(t *testing.T) {
		cfg := FromSettings(config.LogConfig{Level: "debug", Format: "json", Output: "stderr"})
		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "stderr", cfg.Output)
		assert.NotEmpty(t, cfg.TimeFormat)
	})
}

func TestNew(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		t.Run(format, func(t *testing.T) {
			l, err := New(&Config{Level: "info", Format: format, Output: "stdout"})
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("contacts synced")
	_ = Sync(l)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"contacts synced"`)
}

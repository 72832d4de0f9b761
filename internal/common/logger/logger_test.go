package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentweb/agentweb/internal/common/config"
)

func fileConfig(path, level, format string) config.LogConfig {
	return config.LogConfig{
		Level: level,
		File: config.FileLogConfig{
			Enabled: true,
			Path:    path,
			Format:  format,
			Rotation: config.RotationConfig{
				MaxSize:    10,
				MaxAge:     7,
				MaxBackups: 3,
			},
		},
	}
}

func TestNewLoggerConsoleOnly(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{
		Level: config.LogLevelInfo,
		Console: config.ConsoleLogConfig{
			Enabled: true,
			Format:  config.LogFormatConsole,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("console output works")
}

func TestNewLoggerFileOnly(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "agentweb.log")

	logger, err := NewLogger(fileConfig(logPath, config.LogLevelDebug, config.LogFormatJSON))
	require.NoError(t, err)

	logger.Info("file output works", zap.String("key", "value"))
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file output works")
	assert.Contains(t, string(content), `"key"`)
}

func TestNewLoggerNoOutputs(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: config.LogLevelInfo})
	assert.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "at least one log output")
}

func TestNewLoggerFileEnabledNoPath(t *testing.T) {
	cfg := config.LogConfig{
		Level: config.LogLevelInfo,
		File:  config.FileLogConfig{Enabled: true, Format: config.LogFormatJSON},
	}

	logger, err := NewLogger(cfg)
	assert.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "file.path must be specified")
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		wantsDebug bool
		wantsInfo  bool
	}{
		{config.LogLevelDebug, true, true},
		{config.LogLevelInfo, false, true},
		{config.LogLevelWarn, false, false},
		{"invalid", false, true}, // unknown level defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "level.log")

			logger, err := NewLogger(fileConfig(logPath, tt.level, config.LogFormatJSON))
			require.NoError(t, err)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Sync()

			content, err := os.ReadFile(logPath)
			require.NoError(t, err)
			assert.Equal(t, tt.wantsDebug, strings.Contains(string(content), "debug message"))
			assert.Equal(t, tt.wantsInfo, strings.Contains(string(content), "info message"))
			assert.Contains(t, string(content), "warn message")
		})
	}
}

func TestTextFormatHasNoColorCodes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "text.log")

	logger, err := NewLogger(fileConfig(logPath, config.LogLevelInfo, config.LogFormatText))
	require.NoError(t, err)

	logger.Info("plain text entry")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "plain text entry")
	assert.Contains(t, string(content), "INFO")
	assert.NotContains(t, string(content), "\x1b[")
}

func TestPerOutputLevelOverridesGlobal(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "override.log")

	cfg := fileConfig(logPath, config.LogLevelWarn, config.LogFormatJSON)
	cfg.File.Level = config.LogLevelDebug

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Debug("debug message")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "debug message")
}

func TestResolveLogLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, resolveLogLevel("debug", zap.InfoLevel))
	assert.Equal(t, zap.ErrorLevel, resolveLogLevel("error", zap.InfoLevel))
	assert.Equal(t, zap.WarnLevel, resolveLogLevel("", zap.WarnLevel))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"bogus", zap.InfoLevel},
		{"", zap.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestStartupOverrideAndSwitch(t *testing.T) {
	cfg := config.LogConfig{
		Level: config.LogLevelError,
		Console: config.ConsoleLogConfig{
			Enabled: true,
			Format:  config.LogFormatConsole,
		},
	}

	logger, err := NewLoggerWithStartupOverride(cfg)
	require.NoError(t, err)

	// Starts at INFO despite the quieter configured level
	assert.Equal(t, zap.InfoLevel, logger.consoleLevel.Level())

	logger.SwitchToConfiguredLevel()
	assert.Equal(t, zap.ErrorLevel, logger.consoleLevel.Level())
}

func TestEnsureInfoLevelForShutdown(t *testing.T) {
	cfg := config.LogConfig{
		Level: config.LogLevelError,
		Console: config.ConsoleLogConfig{
			Enabled: true,
			Format:  config.LogFormatConsole,
		},
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, zap.ErrorLevel, logger.consoleLevel.Level())

	logger.EnsureInfoLevelForShutdown()
	assert.Equal(t, zap.InfoLevel, logger.consoleLevel.Level())
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Debug("default logger ready")
}

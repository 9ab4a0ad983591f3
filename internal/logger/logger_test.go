package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"chat-client/internal/config"
)

func TestNewHonoursLevel(t *testing.T) {
	log, err := New(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewConsoleFormat(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNamedWithoutBase(t *testing.T) {
	assert.NotPanics(t, func() { Named(nil, "ws").Infow("dropped") })
}

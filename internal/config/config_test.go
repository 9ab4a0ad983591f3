package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:5000")
	t.Setenv("SOCKET_URL", "ws://localhost:5000/socket")
	t.Setenv("USER_ID", "u1")
	t.Setenv("USER_NAME", "Ann")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Chat.PageLimit)
	assert.Equal(t, 3*time.Second, cfg.Chat.TypingTimeout)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "chat.client", cfg.AMQP.Exchange)
	assert.Empty(t, cfg.AMQP.URL)
}

func TestParseMissingRequired(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:5000")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestParseRejectsInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("CHAT_PAGE_LIMIT", "0")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestParseRejectsBadLogFormat(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Parse()
	require.Error(t, err)
}

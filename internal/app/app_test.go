package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"chat-client/internal/config"
	"chat-client/internal/conversation"
	"chat-client/internal/models"
	"chat-client/internal/testutil"
)

func testConfig(srv *testutil.Server) *config.Config {
	return &config.Config{
		API:    config.APIConfig{BaseURL: srv.URL, Token: testutil.Token, Timeout: 5 * time.Second},
		Socket: config.SocketConfig{URL: srv.SocketURL(), PingInterval: time.Second, DialTimeout: time.Second},
		User:   config.UserConfig{ID: "u0", Name: "Me"},
		Chat:   config.ChatConfig{PageLimit: 20, TypingTimeout: 3 * time.Second, TypingRate: 1},
		AMQP: config.AMQPConfig{
			Exchange:  "chat.client",
			Service:   "chat-client",
			Env:       "test",
			AuditKey:  "audit.chat_client",
			NotifyKey: "notifications.chat_client",
		},
		Telemetry: config.TelemetryConfig{ServiceName: "chat-client"},
		Log:       config.LogConfig{Level: "error", Format: "json"},
	}
}

func provideNotifier(fn func(conversation.Notice)) fx.Option {
	return fx.Provide(func() conversation.Notifier { return conversation.NotifierFunc(fn) })
}

func TestGraphIsComplete(t *testing.T) {
	srv := testutil.NewServer(t)
	err := fx.ValidateApp(Options(testConfig(srv), provideNotifier(func(conversation.Notice) {})))
	assert.NoError(t, err)
}

func TestAppOpensConversation(t *testing.T) {
	srv := testutil.NewServer(t)
	conv := models.TaskChat("t1")
	srv.Seed(conv, models.Message{Body: models.TextBody{Text: "hello"}})

	var deps conversation.Deps
	var self models.Self
	app := fxtest.New(t,
		Options(testConfig(srv), provideNotifier(func(conversation.Notice) {})),
		fx.Populate(&deps, &self),
	)
	app.RequireStart()
	defer app.RequireStop()

	s, err := conversation.Open(context.Background(), deps, conversation.Options{Conversation: conv, Self: self})
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "hello", s.Messages()[0].Text())
	assert.True(t, s.Connected())
}

func TestAppRelaysNotifications(t *testing.T) {
	srv := testutil.NewServer(t)
	got := make(chan string, 1)

	app := fxtest.New(t, Options(testConfig(srv), provideNotifier(func(n conversation.Notice) { got <- n.Text })))
	app.RequireStart()
	defer app.RequireStop()

	require.Eventually(t, func() bool { return srv.Hub.Count(models.EventSetup) == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.Hub.EmitAll(models.EventNotification, map[string]string{"message": "task assigned"})

	select {
	case text := <-got:
		assert.Equal(t, "task assigned", text)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestAppStartsWithoutSocket(t *testing.T) {
	srv := testutil.NewServer(t)
	cfg := testConfig(srv)
	cfg.Socket.URL = "ws://127.0.0.1:1/socket"

	app := fxtest.New(t, Options(cfg, provideNotifier(func(conversation.Notice) {})))
	app.RequireStart()
	app.RequireStop()
}

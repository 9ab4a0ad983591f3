package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-client/internal/config"
	"chat-client/internal/models"
	"chat-client/internal/testutil"
)

const wait = 2 * time.Second

func newTestManager(t *testing.T) (*Manager, *testutil.Server) {
	t.Helper()
	srv := testutil.NewServer(t)
	m := NewManager(config.SocketConfig{
		URL:          srv.SocketURL(),
		PingInterval: time.Second,
		DialTimeout:  time.Second,
	}, testutil.Token, models.Self{ID: "u1", Name: "Ann"}, zap.NewNop().Sugar())
	return m, srv
}

func waitSetup(t *testing.T, srv *testutil.Server) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.Hub.Count(models.EventSetup) == 1 }, wait, 10*time.Millisecond)
}

func TestAcquireSharesOneConnection(t *testing.T) {
	m, srv := newTestManager(t)

	var wg sync.WaitGroup
	conns := make([]*Conn, 4)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.Acquire(context.Background())
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range conns[1:] {
		assert.Same(t, conns[0], c)
	}
	assert.Equal(t, 4, m.Refs())
	waitSetup(t, srv)
	assert.Equal(t, 1, srv.Hub.Peers())

	var setup models.Self
	require.NoError(t, json.Unmarshal(srv.Hub.Received(models.EventSetup)[0].Data, &setup))
	assert.Equal(t, "u1", setup.ID)
}

func TestLastReleaseCloses(t *testing.T) {
	m, srv := newTestManager(t)

	c1, err := m.Acquire(context.Background())
	require.NoError(t, err)
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Release())
	assert.True(t, c1.Connected())

	require.NoError(t, m.Release())
	assert.False(t, c1.Connected())
	require.Eventually(t, func() bool { return srv.Hub.Peers() == 0 }, wait, 10*time.Millisecond)
	assert.ErrorIs(t, c1.Emit(models.EventTyping, "r1"), ErrNotConnected)

	c2, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	require.NoError(t, m.Release())
}

func TestAcquireDialFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	m := NewManager(config.SocketConfig{URL: srv.SocketURL(), DialTimeout: time.Second},
		"bad-token", models.Self{ID: "u1", Name: "Ann"}, zap.NewNop().Sugar())

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, m.Refs())
}

func TestJoinRoutesRoomFrames(t *testing.T) {
	m, srv := newTestManager(t)
	c, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer m.Release()

	got := make(chan models.Frame, 4)
	other := make(chan models.Frame, 4)
	sub := c.Join("t1", func(f models.Frame) { got <- f })
	c.Join("t2", func(f models.Frame) { other <- f })
	require.Eventually(t, func() bool { return srv.Hub.RoomSize("t1") == 1 }, wait, 10*time.Millisecond)

	srv.Hub.Emit("t1", models.EventTyping, "t1")
	msg := models.Message{ID: "m1", TaskID: "t1", Body: models.TextBody{Text: "yo"}}
	srv.Hub.Emit("t1", models.EventMessageReceived, models.ReceivedPayload{Data: models.MessageResponse{Success: true, Data: msg}})

	f := <-got
	assert.Equal(t, models.EventTyping, f.Event)
	f = <-got
	require.Equal(t, models.EventMessageReceived, f.Event)
	decoded, err := models.DecodeReceived(f.Data)
	require.NoError(t, err)
	assert.Equal(t, "m1", decoded.ID)
	assert.Empty(t, other)

	sub.Leave()
	sub.Leave()
	require.Eventually(t, func() bool { return srv.Hub.RoomSize("t1") == 0 }, wait, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Hub.Count(models.EventLeaveChat))
}

func TestGlobalHandlersReceiveNotifications(t *testing.T) {
	m, srv := newTestManager(t)
	c, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer m.Release()

	got := make(chan models.Frame, 4)
	stop := c.Handle(func(f models.Frame) {
		if f.Event == models.EventNotification {
			got <- f
		}
	})
	defer stop()
	waitSetup(t, srv)

	srv.Hub.EmitAll(models.EventNotification, map[string]string{"text": "task assigned"})

	select {
	case f := <-got:
		assert.JSONEq(t, `{"text":"task assigned"}`, string(f.Data))
	case <-time.After(wait):
		t.Fatal("notification not delivered")
	}
}

func TestServerDropMarksDisconnected(t *testing.T) {
	m, srv := newTestManager(t)
	c, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer m.Release()
	waitSetup(t, srv)

	srv.Hub.CloseAll()

	select {
	case <-c.Done():
	case <-time.After(wait):
		t.Fatal("read loop still running")
	}
	assert.False(t, c.Connected())
	assert.True(t, errors.Is(c.Emit(models.EventStopTyping, "t1"), ErrNotConnected))
}

func TestAcquireRedialsAfterDrop(t *testing.T) {
	m, srv := newTestManager(t)
	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	waitSetup(t, srv)

	srv.Hub.CloseAll()
	select {
	case <-first.Done():
	case <-time.After(wait):
		t.Fatal("read loop still running")
	}

	second, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, second.Connected())
	assert.Equal(t, 2, m.Refs())
	require.Eventually(t, func() bool { return srv.Hub.Count(models.EventSetup) == 2 }, wait, 10*time.Millisecond)
	assert.NoError(t, second.Emit(models.EventStopTyping, "t1"))

	require.NoError(t, m.Release())
	require.NoError(t, m.Release())
	assert.Zero(t, m.Refs())
	assert.False(t, second.Connected())
}

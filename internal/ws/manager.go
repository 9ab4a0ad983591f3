package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-client/internal/config"
	"chat-client/internal/models"
)

// Manager owns the socket connection. The first Acquire dials and the last Release
// closes it.
type Manager struct {
	cfg   config.SocketConfig
	token string
	self  models.Self
	log   *zap.SugaredLogger

	mu   sync.Mutex
	conn *Conn
	refs int
}

// NewManager constructs a Manager. Nothing is dialed until the first Acquire.
func NewManager(cfg config.SocketConfig, token string, self models.Self, log *zap.SugaredLogger) *Manager {
	return &Manager{cfg: cfg, token: token, self: self, log: log}
}

// Acquire returns the shared connection and takes a reference on it. Concurrent
// callers wait for an in-progress dial instead of racing it.
func (m *Manager) Acquire(ctx context.Context) (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || !m.conn.Connected() {
		conn, err := m.dial(ctx)
		if err != nil {
			return nil, err
		}
		if m.conn != nil {
			m.log.Infow("socket dropped, redialed", "refs", m.refs)
			_ = m.conn.Close()
		}
		m.conn = conn
	}
	m.refs++
	return m.conn, nil
}

// Release drops one reference and closes the connection when none remain.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return nil
	}
	m.refs--
	if m.refs > 0 {
		return nil
	}
	conn := m.conn
	m.conn = nil
	m.log.Infow("closing socket, no subscribers left")
	return conn.Close()
}

// Refs reports the number of outstanding references.
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

func (m *Manager) dial(ctx context.Context) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: m.cfg.DialTimeout,
	}
	header := http.Header{}
	if m.token != "" {
		header.Set("Authorization", "Bearer "+m.token)
	}

	ws, resp, err := dialer.DialContext(ctx, m.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial socket: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial socket: %w", err)
	}

	conn := newConn(ws, m.log)
	pongWait := m.cfg.PingInterval * 2
	if m.cfg.PingInterval > 0 {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		go conn.keepalive(m.cfg.PingInterval)
	}
	go conn.readLoop(pongWait)

	if err := conn.Emit(models.EventSetup, m.self); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("socket setup: %w", err)
	}
	m.log.Infow("socket connected", "url", m.cfg.URL, "user_id", m.self.ID)
	return conn, nil
}

package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// ErrNotConnected is returned by Emit once the socket is gone.
var ErrNotConnected = errors.New("socket not connected")

// Handler receives inbound frames. Handlers run on the read goroutine and must not block.
type Handler func(models.Frame)

// Conn is one socket connection shared by every open conversation.
type Conn struct {
	ws  *websocket.Conn
	wmu sync.Mutex
	log *zap.SugaredLogger

	connected atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	nextID int
	rooms  map[string]map[int]Handler
	global map[int]Handler
}

func newConn(ws *websocket.Conn, log *zap.SugaredLogger) *Conn {
	c := &Conn{
		ws:     ws,
		log:    log,
		done:   make(chan struct{}),
		rooms:  make(map[string]map[int]Handler),
		global: make(map[int]Handler),
	}
	c.connected.Store(true)
	observability.IncWSActive()
	return c
}

// Connected reports whether frames can still be sent.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// Done is closed when the read loop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Emit writes one frame.
func (c *Conn) Emit(event string, data any) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	f, err := models.NewFrame(event, data)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	err = c.ws.WriteJSON(f)
	c.wmu.Unlock()
	if err != nil {
		c.log.Warnw("socket write failed", "event", event, "error", err)
		return errors.Join(ErrNotConnected, err)
	}
	observability.IncWSEvent("out", event)
	return nil
}

// Subscription is a room membership held by one conversation view.
type Subscription struct {
	conn *Conn
	room string
	id   int
	once sync.Once
}

// Join registers h for frames of room and announces it with "join chat". The handler
// stays registered even when the announcement cannot be sent.
func (c *Conn) Join(room string, h Handler) *Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if _, ok := c.rooms[room]; !ok {
		c.rooms[room] = make(map[int]Handler)
	}
	c.rooms[room][id] = h
	c.mu.Unlock()

	if err := c.Emit(models.EventJoinChat, room); err != nil {
		c.log.Debugw("join chat not sent", "room", room, "error", err)
	}
	return &Subscription{conn: c, room: room, id: id}
}

// Leave sends "leave chat" and drops the handler. It is safe to call twice.
func (s *Subscription) Leave() {
	s.once.Do(func() {
		if err := s.conn.Emit(models.EventLeaveChat, s.room); err != nil {
			s.conn.log.Debugw("leave chat not sent", "room", s.room, "error", err)
		}
		s.conn.mu.Lock()
		defer s.conn.mu.Unlock()
		if handlers, ok := s.conn.rooms[s.room]; ok {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.conn.rooms, s.room)
			}
		}
	})
}

// Room is the joined room id.
func (s *Subscription) Room() string {
	return s.room
}

// Handle registers h for frames that do not belong to a room, such as
// "notification" and "connected". The returned func unregisters it.
func (c *Conn) Handle(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.global[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.global, id)
	}
}

// Close sends a close frame and tears the connection down.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop(pongWait time.Duration) {
	defer func() {
		c.connected.Store(false)
		observability.DecWSActive()
		close(c.done)
	}()

	for {
		if pongWait > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		}
		var f models.Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.log.Warnw("dropping malformed frame", "error", err)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnw("socket closed", "error", err)
			} else {
				c.log.Debugw("socket read loop stopped", "error", err)
			}
			return
		}
		observability.IncWSEvent("in", f.Event)
		c.dispatch(f)
	}
}

// dispatch routes a frame to the subscribers of its room. Frames without a room go to
// the global handlers.
func (c *Conn) dispatch(f models.Frame) {
	room := ""
	switch f.Event {
	case models.EventMessageReceived:
		msg, err := models.DecodeReceived(f.Data)
		if err != nil {
			c.log.Warnw("dropping malformed message", "error", err)
			return
		}
		room = msg.ConversationID()
	case models.EventTyping, models.EventStopTyping:
		room = models.DecodeRoom(f.Data)
	}

	c.mu.RLock()
	var handlers []Handler
	if room != "" {
		for _, h := range c.rooms[room] {
			handlers = append(handlers, h)
		}
	} else {
		for _, h := range c.global {
			handlers = append(handlers, h)
		}
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(f)
	}
}

// keepalive pings until the connection ends. A missing pong lets the read deadline
// expire, which stops the read loop.
func (c *Conn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wmu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval/2))
			c.wmu.Unlock()
			if err != nil {
				c.log.Debugw("ping failed", "error", err)
				return
			}
		}
	}
}

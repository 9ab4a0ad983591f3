package testutil

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat-client/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is the fake socket server. It keeps rooms of peers and relays events the way
// the real server does.
type Hub struct {
	mu       sync.RWMutex
	peers    map[*peer]bool
	rooms    map[string]map[*peer]bool
	received []models.Frame
	echo     bool
}

type peer struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	user models.Self
}

func (p *peer) send(f models.Frame) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteJSON(f)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		peers: make(map[*peer]bool),
		rooms: make(map[string]map[*peer]bool),
	}
}

// Serve upgrades the request and reads frames until the peer goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}
	h.mu.Lock()
	h.peers[p] = true
	h.mu.Unlock()

	defer func() {
		h.remove(p)
		conn.Close()
	}()

	for {
		var f models.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		h.mu.Lock()
		h.received = append(h.received, f)
		h.mu.Unlock()
		h.handle(p, f)
	}
}

func (h *Hub) handle(p *peer, f models.Frame) {
	switch f.Event {
	case models.EventSetup:
		_ = json.Unmarshal(f.Data, &p.user)
		if err := p.send(models.Frame{Event: models.EventConnected}); err != nil {
			log.Printf("fake hub write error: %v", err)
		}
	case models.EventJoinChat:
		h.join(models.DecodeRoom(f.Data), p)
	case models.EventLeaveChat:
		h.leave(models.DecodeRoom(f.Data), p)
	case models.EventTyping, models.EventStopTyping:
		h.broadcast(models.DecodeRoom(f.Data), f, p)
	case models.EventNewMessage:
		var resp models.MessageResponse
		if err := json.Unmarshal(f.Data, &resp); err != nil {
			return
		}
		out, err := models.NewFrame(models.EventMessageReceived, models.ReceivedPayload{Data: resp})
		if err != nil {
			return
		}
		h.mu.RLock()
		skip := p
		if h.echo {
			skip = nil
		}
		h.mu.RUnlock()
		h.broadcast(resp.Data.ConversationID(), out, skip)
	}
}

// EchoToSender makes "message received" reach the peer that emitted it too.
func (h *Hub) EchoToSender(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.echo = on
}

// Emit sends an event to every peer in room.
func (h *Hub) Emit(room, event string, data any) {
	f, err := models.NewFrame(event, data)
	if err != nil {
		return
	}
	h.broadcast(room, f, nil)
}

// EmitAll sends an event to every connected peer.
func (h *Hub) EmitAll(event string, data any) {
	f, err := models.NewFrame(event, data)
	if err != nil {
		return
	}
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		_ = p.send(f)
	}
}

// Received returns the frames peers sent with the given event name.
func (h *Hub) Received(event string) []models.Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []models.Frame
	for _, f := range h.received {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// Count is len(Received(event)).
func (h *Hub) Count(event string) int {
	return len(h.Received(event))
}

// RoomSize returns the number of peers joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Peers returns the number of open connections.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// CloseAll drops every connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		p.conn.Close()
	}
}

func (h *Hub) join(room string, p *peer) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*peer]bool)
	}
	h.rooms[room][p] = true
}

func (h *Hub) leave(room string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, p)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p)
	for room, members := range h.rooms {
		delete(members, p)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) broadcast(room string, f models.Frame, skip *peer) {
	h.mu.RLock()
	targets := make([]*peer, 0, len(h.rooms[room]))
	for p := range h.rooms[room] {
		if p != skip {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		if err := p.send(f); err != nil {
			log.Printf("fake hub write error: %v", err)
			p.conn.Close()
		}
	}
}

// Package testutil runs an in-process chat backend for tests: gin REST handlers and a
// gorilla websocket hub that speak the same contract as the production backend.
package testutil

import (
	"fmt"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
)

// Token is the bearer token the fake backend accepts.
const Token = "test-token"

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Server is a fake chat backend.
type Server struct {
	*httptest.Server
	Hub *Hub

	mu       sync.Mutex
	messages map[string][]models.Message
	members  map[string][]models.Member
	reads    []models.ReadReceiptRequest
	failures map[string][]int
	calls    map[string]int
	seq      int

	requestIDs []string
	nextIDs    []string

	createHook func(models.Message)
}

// NewServer starts a fake backend that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		Hub:      NewHub(),
		messages: make(map[string][]models.Message),
		members:  make(map[string][]models.Member),
		failures: make(map[string][]int),
		calls:    make(map[string]int),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), AuthMiddleware(Token))
	s.routes(r)

	s.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		s.Hub.CloseAll()
		s.Server.Close()
	})
	return s
}

// SocketURL is the websocket endpoint of the fake.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/socket"
}

// AddMembers appends members to a conversation roster.
func (s *Server) AddMembers(conv models.ConversationRef, members ...models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[key(conv)] = append(s.members[key(conv)], members...)
}

// Seed stores messages as if they had been created earlier. Missing ids and
// timestamps are filled in.
func (s *Server) Seed(conv models.ConversationRef, msgs ...models.Message) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		s.seq++
		if m.ID == "" {
			m.ID = fmt.Sprintf("seed-%d", s.seq)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = epoch.Add(time.Duration(s.seq) * time.Second)
		}
		if m.Body == nil {
			m.Body = models.TextBody{Text: "message " + m.ID}
		}
		conv.Stamp(&m)
		s.messages[key(conv)] = append(s.messages[key(conv)], m)
		out = append(out, m)
	}
	sortMessages(s.messages[key(conv)])
	return out
}

// Messages returns the stored history of a conversation, oldest first.
func (s *Server) Messages(conv models.ConversationRef) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages[key(conv)]...)
}

// Reads returns every read-cursor update received.
func (s *Server) Reads() []models.ReadReceiptRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ReadReceiptRequest(nil), s.reads...)
}

// Calls returns how many times an operation was requested, failures included.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// FailNext makes the next call of op answer with status.
func (s *Server) FailNext(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], status)
}

// NextID fixes the id assigned to the next created message.
func (s *Server) NextID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextIDs = append(s.nextIDs, id)
}

// OnCreate runs fn with the stored message before the create response is written.
func (s *Server) OnCreate(fn func(models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createHook = fn
}

func (s *Server) record(op string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	queue := s.failures[op]
	if len(queue) == 0 {
		return 0, false
	}
	s.failures[op] = queue[1:]
	return queue[0], true
}

func key(conv models.ConversationRef) string {
	return conv.String()
}

func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

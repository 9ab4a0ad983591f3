package testutil

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDContextKey = "request_id"

// requestID records the X-Request-ID of every call, generating one when the client
// sent none.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header("X-Request-ID", id)

		s.mu.Lock()
		s.requestIDs = append(s.requestIDs, id)
		s.mu.Unlock()

		c.Next()
	}
}

// RequestIDs returns the request ids seen so far, in arrival order.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

package conversation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"chat-client/internal/models"
)

// ReadReceipts moves the user's read cursor to the newest confirmed message. Posts are
// fire-and-forget; the same id is never posted twice in a row.
type ReadReceipts struct {
	ctx  context.Context
	conv models.ConversationRef
	self models.Self
	api  Backend
	log  *zap.SugaredLogger

	mu     sync.Mutex
	last   string
	closed bool
	wg     sync.WaitGroup
}

// NewReadReceipts constructs ReadReceipts. Posts are canceled with ctx.
func NewReadReceipts(ctx context.Context, conv models.ConversationRef, self models.Self, api Backend, log *zap.SugaredLogger) *ReadReceipts {
	return &ReadReceipts{ctx: ctx, conv: conv, self: self, api: api, log: log}
}

// Observe posts a read cursor for m unless it is a placeholder or was just posted.
func (r *ReadReceipts) Observe(m models.Message) bool {
	if m.Pending || m.ID == "" {
		return false
	}
	r.mu.Lock()
	if r.closed || m.ID == r.last {
		r.mu.Unlock()
		return false
	}
	r.last = m.ID
	r.wg.Add(1)
	r.mu.Unlock()

	req := models.ReadReceiptRequest{UserID: r.self.ID, MessageID: m.ID}
	if r.conv.Kind == models.KindGroup {
		req.GroupID = r.conv.ID
	} else {
		req.TaskID = r.conv.ID
	}

	go func() {
		defer r.wg.Done()
		if err := r.api.MarkRead(r.ctx, r.conv, req); err != nil {
			r.log.Warnw("read receipt failed", "message_id", m.ID, "error", err)
		}
	}()
	return true
}

// Last is the id most recently posted.
func (r *ReadReceipts) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Wait blocks until in-flight posts finish.
func (r *ReadReceipts) Wait() {
	r.wg.Wait()
}

// Close stops new posts and waits for in-flight ones.
func (r *ReadReceipts) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// Publisher forwards events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NotificationEvent is the broker message for one inbound notification.
type NotificationEvent struct {
	RequestID  string          `json:"request_id"`
	UserID     string          `json:"user_id"`
	ReceivedAt string          `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Headers are copied onto the published message.
func (e NotificationEvent) Headers() map[string]string {
	return observability.BuildHeaders(e.RequestID, "")
}

// NotificationRelay listens for "notification" frames on the shared socket. Each one
// is shown through the Notifier, forwarded to the broker and audited. A single relay
// runs per process, independent of open conversations.
type NotificationRelay struct {
	transport  Transport
	notifier   Notifier
	publisher  Publisher
	routingKey string
	audit      Auditor
	self       models.Self
	log        *zap.SugaredLogger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopFn  func()
	running bool
	wg      sync.WaitGroup
}

// NewNotificationRelay constructs a relay. Publisher and audit may be nil.
func NewNotificationRelay(transport Transport, notifier Notifier, publisher Publisher, routingKey string, audit Auditor, self models.Self, log *zap.SugaredLogger) *NotificationRelay {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if audit == nil {
		audit = nopAuditor{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &NotificationRelay{
		transport:  transport,
		notifier:   notifier,
		publisher:  publisher,
		routingKey: routingKey,
		audit:      audit,
		self:       self,
		log:        log,
	}
}

// Start takes a socket reference and begins relaying.
func (r *NotificationRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	conn, err := r.transport.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("start notification relay: %w", err)
	}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.stopFn = conn.Handle(r.onFrame)
	r.running = true
	return nil
}

// Stop unregisters the relay, waits for in-flight forwards and releases the socket.
func (r *NotificationRelay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.stopFn()
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
	return r.transport.Release()
}

func (r *NotificationRelay) onFrame(f models.Frame) {
	if f.Event != models.EventNotification {
		return
	}
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	n := models.Notification{Raw: f.Data}
	text := n.Text()
	r.notifier.Notify(Notice{Level: LevelInfo, Text: text})
	r.audit.Emit(ctx, "notification_received", "info", text)

	if r.publisher == nil {
		return
	}
	payload := f.Data
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	event := NotificationEvent{
		RequestID:  uuid.NewString(),
		UserID:     r.self.ID,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
	if err := r.publisher.Publish(ctx, r.routingKey, event); err != nil {
		r.log.Warnw("notification forward failed", "request_id", event.RequestID, "error", err)
	}
}

package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-client/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	userID      string
	log         *zap.SugaredLogger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Headers are copied onto the published message.
func (e AuditEnvelope) Headers() map[string]string {
	return observability.BuildHeaders(e.RequestID, e.TraceID)
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment, userID string, log *zap.SugaredLogger) *AuditEmitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		userID:      userID,
		log:         log,
	}
}

// Emit publishes one audit event. Failures are logged, never returned.
func (e *AuditEmitter) Emit(ctx context.Context, eventType, level, text string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := e.Envelope(ctx, eventType, level, text)
	e.log.Debugw("audit emit", "event_type", eventType, "level", level, "request_id", envelope.RequestID, "text", text)

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Warnw("audit publish failed", "event_type", eventType, "error", err)
	}
}

// Envelope builds the event Emit publishes.
func (e *AuditEmitter) Envelope(ctx context.Context, eventType, level, text string) AuditEnvelope {
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     uuid.NewString(),
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}
	if e.userID != "" {
		id := e.userID
		envelope.UserID = &id
	}
	return envelope
}

package conversation

import (
	"context"
	"io"

	"chat-client/internal/models"
	"chat-client/internal/ws"
)

// Backend is the REST surface a conversation needs.
type Backend interface {
	FetchPage(ctx context.Context, conv models.ConversationRef, page, limit int) (models.Page, error)
	CreateMessage(ctx context.Context, conv models.ConversationRef, req models.CreateMessageRequest) (models.MessageResponse, error)
	EditMessage(ctx context.Context, conv models.ConversationRef, messageID string, req models.EditMessageRequest) (models.MessageResponse, error)
	MarkRead(ctx context.Context, conv models.ConversationRef, req models.ReadReceiptRequest) error
	Members(ctx context.Context, conv models.ConversationRef) ([]models.Member, error)
	UploadDocument(ctx context.Context, filename string, content io.Reader) (models.Document, error)
}

// Transport hands out the shared socket connection.
type Transport interface {
	Acquire(ctx context.Context) (*ws.Conn, error)
	Release() error
}

// Auditor records failures for later inspection.
type Auditor interface {
	Emit(ctx context.Context, eventType, level, text string)
}

type nopAuditor struct{}

func (nopAuditor) Emit(context.Context, string, string, string) {}

package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
)

// BackendMock mocks the REST client.
type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) FetchPage(ctx context.Context, conv models.ConversationRef, page, limit int) (models.Page, error) {
	args := m.Called(ctx, conv, page, limit)
	var p models.Page
	if val := args.Get(0); val != nil {
		p = val.(models.Page)
	}
	return p, args.Error(1)
}

func (m *BackendMock) CreateMessage(ctx context.Context, conv models.ConversationRef, req models.CreateMessageRequest) (models.MessageResponse, error) {
	args := m.Called(ctx, conv, req)
	var resp models.MessageResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.MessageResponse)
	}
	return resp, args.Error(1)
}

func (m *BackendMock) EditMessage(ctx context.Context, conv models.ConversationRef, messageID string, req models.EditMessageRequest) (models.MessageResponse, error) {
	args := m.Called(ctx, conv, messageID, req)
	var resp models.MessageResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.MessageResponse)
	}
	return resp, args.Error(1)
}

func (m *BackendMock) MarkRead(ctx context.Context, conv models.ConversationRef, req models.ReadReceiptRequest) error {
	args := m.Called(ctx, conv, req)
	return args.Error(0)
}

func (m *BackendMock) Members(ctx context.Context, conv models.ConversationRef) ([]models.Member, error) {
	args := m.Called(ctx, conv)
	var list []models.Member
	if val := args.Get(0); val != nil {
		list = val.([]models.Member)
	}
	return list, args.Error(1)
}

func (m *BackendMock) UploadDocument(ctx context.Context, filename string, content io.Reader) (models.Document, error) {
	args := m.Called(ctx, filename, content)
	var doc models.Document
	if val := args.Get(0); val != nil {
		doc = val.(models.Document)
	}
	return doc, args.Error(1)
}

// AuditorMock mocks the audit emitter.
type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, eventType, level, text string) {
	m.Called(ctx, eventType, level, text)
}

// PublisherMock mocks the AMQP publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

package models

import "encoding/json"

// Envelope is the common REST response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Total   int             `json:"total,omitempty"`
}

// MessageResponse is the REST response of create and edit calls. It is also the payload
// emitted with "new message".
type MessageResponse struct {
	Success bool    `json:"success"`
	Data    Message `json:"data"`
}

// Page is one history page, oldest first.
type Page struct {
	Number   int
	Limit    int
	Total    int
	Messages []Message
}

// CreateMessageRequest is the body of POST /comment and POST /groupMessage.
type CreateMessageRequest struct {
	Content   string   `json:"content" validate:"required"`
	TaskID    string   `json:"taskId,omitempty" validate:"required_without=GroupID"`
	GroupID   string   `json:"groupId,omitempty" validate:"required_without=TaskID"`
	AuthorID  string   `json:"authorId" validate:"required"`
	IsFile    bool     `json:"isFile,omitempty"`
	MentionBy []string `json:"mentionBy,omitempty"`
}

// EditMessageRequest is the body of PATCH /comment/{id} and PATCH /groupMessage/{id}.
type EditMessageRequest struct {
	Content   string   `json:"content" validate:"required"`
	MentionBy []string `json:"mentionBy"`
}

// ReadReceiptRequest moves a user's read cursor.
type ReadReceiptRequest struct {
	TaskID    string `json:"taskId,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	UserID    string `json:"userId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

// Document is the result of POST /documents.
type Document struct {
	URL              string `json:"url" validate:"required"`
	OriginalFilename string `json:"originalFilename"`
	MimeType         string `json:"mimeType"`
}

// AsBody returns the file body sent for this document.
func (d Document) AsBody() FileBody {
	return FileBody{URL: d.URL, OriginalFilename: d.OriginalFilename, MimeType: d.MimeType}
}

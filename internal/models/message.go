package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Author identifies the sender of a message.
type Author struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Body is the decoded content of a message: either a TextBody or a FileBody.
type Body interface {
	isBody()
}

// TextBody is a plain text message.
type TextBody struct {
	Text string
}

// FileBody describes an uploaded document sent as a message.
type FileBody struct {
	URL              string `json:"url"`
	OriginalFilename string `json:"originalFilename,omitempty"`
	MimeType         string `json:"mimeType,omitempty"`
}

func (TextBody) isBody() {}
func (FileBody) isBody() {}

// Message represents a task comment or a group message.
type Message struct {
	ID        string     `json:"_id"`
	Author    Author     `json:"authorId"`
	Body      Body       `json:"-"`
	TaskID    string     `json:"taskId,omitempty"`
	GroupID   string     `json:"groupId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	MentionBy []User     `json:"mentionBy"`
	SeenBy    []User     `json:"seenBy"`

	// Pending marks a local placeholder that the server has not confirmed yet.
	Pending bool `json:"-"`
}

// User is the short user form embedded in mention and seen lists.
type User struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts a populated user object or a bare id.
func (u *User) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		*u = User{}
		return json.Unmarshal(data, &u.ID)
	}
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = User(p)
	return nil
}

// wireMessage is the JSON shape exchanged with the backend.
type wireMessage struct {
	ID        string          `json:"_id"`
	Author    json.RawMessage `json:"authorId"`
	Content   string          `json:"content"`
	IsFile    bool            `json:"isFile"`
	TaskID    string          `json:"taskId,omitempty"`
	GroupID   string          `json:"groupId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	EditedAt  *time.Time      `json:"editedAt,omitempty"`
	MentionBy []User          `json:"mentionBy"`
	SeenBy    []User          `json:"seenBy"`
}

// UnmarshalJSON decodes the wire format and resolves the body variant once.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	author, err := decodeAuthor(w.Author)
	if err != nil {
		return err
	}
	*m = Message{
		ID:        w.ID,
		Author:    author,
		Body:      DecodeBody(w.Content, w.IsFile),
		TaskID:    w.TaskID,
		GroupID:   w.GroupID,
		CreatedAt: w.CreatedAt,
		EditedAt:  w.EditedAt,
		MentionBy: w.MentionBy,
		SeenBy:    w.SeenBy,
	}
	return nil
}

// MarshalJSON encodes the message back into the wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	content, isFile := EncodeBody(m.Body)
	author, err := json.Marshal(m.Author)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{
		ID:        m.ID,
		Author:    author,
		Content:   content,
		IsFile:    isFile,
		TaskID:    m.TaskID,
		GroupID:   m.GroupID,
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		MentionBy: m.MentionBy,
		SeenBy:    m.SeenBy,
	})
}

// authorId is either populated ({_id, name}) or a bare id string.
func decodeAuthor(raw json.RawMessage) (Author, error) {
	var a Author
	if len(raw) == 0 || string(raw) == "null" {
		return a, nil
	}
	if raw[0] == '"' {
		err := json.Unmarshal(raw, &a.ID)
		return a, err
	}
	err := json.Unmarshal(raw, &a)
	return a, err
}

// DecodeBody turns the content/isFile pair into a Body. File content that is not a
// JSON descriptor is treated as a bare URL.
func DecodeBody(content string, isFile bool) Body {
	if !isFile {
		return TextBody{Text: content}
	}
	var f FileBody
	if err := json.Unmarshal([]byte(content), &f); err != nil || f.URL == "" {
		return FileBody{URL: strings.TrimSpace(content)}
	}
	return f
}

// EncodeBody is the inverse of DecodeBody.
func EncodeBody(b Body) (string, bool) {
	switch v := b.(type) {
	case FileBody:
		data, err := json.Marshal(v)
		if err != nil {
			return v.URL, true
		}
		return string(data), true
	case TextBody:
		return v.Text, false
	default:
		return "", false
	}
}

// Text returns the message text, or "" for file messages.
func (m Message) Text() string {
	if t, ok := m.Body.(TextBody); ok {
		return t.Text
	}
	return ""
}

// IsFile reports whether the message carries a document.
func (m Message) IsFile() bool {
	_, ok := m.Body.(FileBody)
	return ok
}

// ConversationID returns the task or group id the message belongs to.
func (m Message) ConversationID() string {
	if m.GroupID != "" {
		return m.GroupID
	}
	return m.TaskID
}

// MentionNames lists the names in MentionBy.
func (m Message) MentionNames() []string {
	names := make([]string, 0, len(m.MentionBy))
	for _, u := range m.MentionBy {
		names = append(names, u.Name)
	}
	return names
}

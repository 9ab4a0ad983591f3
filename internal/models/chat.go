package models

import (
	"fmt"
	"strings"
)

// ConversationKind distinguishes task chats from group chats.
type ConversationKind string

const (
	KindTask  ConversationKind = "task"
	KindGroup ConversationKind = "group"
)

// ConversationRef addresses one conversation on the backend.
type ConversationRef struct {
	Kind ConversationKind
	ID   string
}

// TaskChat returns the ref of a task's comment thread.
func TaskChat(taskID string) ConversationRef {
	return ConversationRef{Kind: KindTask, ID: taskID}
}

// GroupChat returns the ref of a group chat.
func GroupChat(groupID string) ConversationRef {
	return ConversationRef{Kind: KindGroup, ID: groupID}
}

// Room is the socket room joined for this conversation.
func (c ConversationRef) Room() string {
	return c.ID
}

// Valid reports whether the ref names a known kind and a non-empty id.
func (c ConversationRef) Valid() bool {
	return (c.Kind == KindTask || c.Kind == KindGroup) && strings.TrimSpace(c.ID) != ""
}

func (c ConversationRef) String() string {
	return fmt.Sprintf("%s/%s", c.Kind, c.ID)
}

// Owns reports whether m belongs to this conversation.
func (c ConversationRef) Owns(m Message) bool {
	switch c.Kind {
	case KindTask:
		return m.TaskID == c.ID
	case KindGroup:
		return m.GroupID == c.ID
	}
	return false
}

// Stamp sets the task or group id of m to this conversation.
func (c ConversationRef) Stamp(m *Message) {
	if c.Kind == KindGroup {
		m.GroupID = c.ID
		return
	}
	m.TaskID = c.ID
}

package models

// Member is a chat participant as returned by the roster endpoints.
type Member struct {
	ID                string `json:"_id"`
	Name              string `json:"name"`
	Image             string `json:"image,omitempty"`
	Role              string `json:"role,omitempty"`
	LastMessageReadID string `json:"lastMessageReadId,omitempty"`
}

// AsUser returns the short form used in mention lists.
func (m Member) AsUser() User {
	return User{ID: m.ID, Name: m.Name}
}

// Self is the authenticated user driving the client.
type Self struct {
	ID   string `json:"_id" validate:"required"`
	Name string `json:"name" validate:"required"`
	Role string `json:"role,omitempty"`
}

// AsAuthor returns the author stamp for locally created messages.
func (s Self) AsAuthor() Author {
	return Author{ID: s.ID, Name: s.Name}
}

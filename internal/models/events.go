package models

import "encoding/json"

// Socket event names.
const (
	EventSetup           = "setup"
	EventConnected       = "connected"
	EventJoinChat        = "join chat"
	EventLeaveChat       = "leave chat"
	EventTyping          = "typing"
	EventStopTyping      = "stop typing"
	EventNewMessage      = "new message"
	EventMessageReceived = "message received"
	EventNotification    = "notification"
)

// Frame is one socket frame in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes data into a frame.
func NewFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}

// ReceivedPayload is the shape of an inbound "message received" event: the server wraps
// the REST response that the sender emitted with "new message".
type ReceivedPayload struct {
	Data MessageResponse `json:"data"`
}

// DecodeReceived extracts the message from a "message received" payload.
func DecodeReceived(raw json.RawMessage) (Message, error) {
	var p ReceivedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Message{}, err
	}
	return p.Data.Data, nil
}

// DecodeRoom reads the room id carried by typing events. Both a bare string and an
// object with a room or roomId field are accepted.
func DecodeRoom(raw json.RawMessage) string {
	var room string
	if err := json.Unmarshal(raw, &room); err == nil {
		return room
	}
	var obj struct {
		Room   string `json:"room"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.RoomID != "" {
			return obj.RoomID
		}
		return obj.Room
	}
	return ""
}

// Notification is an inbound "notification" payload. The body is kept raw because its
// schema belongs to the backend.
type Notification struct {
	Raw json.RawMessage
}

// Text is a one-line rendering: the payload itself when it is a string, else its
// message, text or title field, else the raw JSON.
func (n Notification) Text() string {
	var s string
	if err := json.Unmarshal(n.Raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Text    string `json:"text"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(n.Raw, &obj); err == nil {
		for _, v := range []string{obj.Message, obj.Text, obj.Title} {
			if v != "" {
				return v
			}
		}
	}
	return string(n.Raw)
}

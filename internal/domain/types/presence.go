package types

import (
	"encoding/json"
	"time"
)

// Live event names exchanged over the socket.
const (
	EventNewMessage      = "newMessage"
	EventNewGroupMessage = "newGroupMessage"
	EventMessageUpdated  = "messageUpdated"
	EventMessageDeleted  = "messageDeleted"
	EventOnlineUsers     = "getOnlineUsers"
	EventUserTyping      = "userTyping"
	EventUserStopTyping  = "userStopTyping"

	// Emitted by clients.
	EventStartTyping = "startTyping"
	EventStopTyping  = "stopTyping"
)

// ConnectionState tracks the lifecycle of one socket.
type ConnectionState int

const (
	ConnConnecting ConnectionState = iota
	ConnConnected
	ConnDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// ConnectionRecord describes one live socket of a user.
type ConnectionRecord struct {
	UserID       UserID
	ConnectionID ConnectionID
	ConnectedAt  time.Time
	State        ConnectionState
}

// Event is a single frame on the live socket: {"event": name, "data": payload}.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event called name.
func NewEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: b}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// TypingTarget is the payload of client-emitted typing events.
type TypingTarget struct {
	ReceiverID UserID `json:"receiverId"`
}

// TypingNotice is the payload of userTyping and userStopTyping.
type TypingNotice struct {
	SenderID UserID `json:"userId"`
}

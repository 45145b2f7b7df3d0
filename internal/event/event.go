package event

import "encoding/json"

// Inbound event names accepted by the relay. send_message is listed so the
// relay can reject it with a pointer at the durable write path; message
// creation stays single-writer behind the REST API.
const (
	JoinRoom    = "join_room"
	LeaveRoom   = "leave_room"
	TypingStart = "typing_start"
	TypingStop  = "typing_stop"
	MarkRead    = "mark_read"
	SendMessage = "send_message"
)

// Outbound event names.
const (
	Connected           = "connected"
	NewMessage          = "new_message"
	ConversationUpdated = "conversation_updated"
	MessagesRead        = "messages_read"
	UnreadReset         = "unread_reset"
	Typing              = "typing"
	Error               = "error"
)

// Envelope is the wire frame for outbound events.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound is the wire frame for client events; payloads decode lazily per
// handler.
type Inbound struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

package domain

import "time"

type MessageType string

const (
	MessageText             MessageType = "TEXT"
	MessageSystem           MessageType = "SYSTEM"
	MessageBookingCreated   MessageType = "BOOKING_CREATED"
	MessageBookingConfirmed MessageType = "BOOKING_CONFIRMED"
	MessageBookingCancelled MessageType = "BOOKING_CANCELLED"
	MessageBookingCompleted MessageType = "BOOKING_COMPLETED"
)

// System reports whether t is produced by the platform rather than typed by a
// participant. System messages are attributed to the provider side.
func (t MessageType) System() bool {
	return t != MessageText
}

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageSystem, MessageBookingCreated,
		MessageBookingConfirmed, MessageBookingCancelled, MessageBookingCompleted:
		return true
	}
	return false
}

// Message is a single conversation entry. IsRead is monotonic: once a
// non-sender marks it read it never flips back.
type Message struct {
	ID             string      `db:"id"`
	ConversationID string      `db:"conversation_id"`
	SenderID       string      `db:"sender_id"`
	Content        string      `db:"content"`
	Type           MessageType `db:"message_type"`
	IsRead         bool        `db:"is_read"`
	CreatedAt      time.Time   `db:"created_at"`
}

package event

import (
	"time"

	"github.com/eventora/chat-service/internal/domain"
)

// Message is the wire shape of a persisted message. Consumers key incoming
// messages by ID and drop re-deliveries, so the same ID may legitimately
// arrive more than once on a multi-tab consumer.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"messageType"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

func MessageFrom(m domain.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           string(m.Type),
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type ConnectedPayload struct {
	UserID string `json:"userId"`
}

type NewMessagePayload struct {
	Message        Message `json:"message"`
	ConversationID string  `json:"conversationId"`
}

type ConversationUpdatedPayload struct {
	ConversationID string  `json:"conversationId"`
	LastMessage    Message `json:"lastMessage"`
	UnreadCount    int     `json:"unreadCount"`
}

type MessagesReadPayload struct {
	ReaderID       string `json:"readerId"`
	ConversationID string `json:"conversationId"`
}

type UnreadResetPayload struct {
	ConversationID string `json:"conversationId"`
}

type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

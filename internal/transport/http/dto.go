package http

import (
	"time"

	"github.com/eventora/chat-service/internal/event"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateConversationRequest struct {
	ClientID   string  `json:"clientId"`
	ProviderID string  `json:"providerId"`
	ServiceID  *string `json:"serviceId,omitempty"`
}

type ConversationItem struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"clientId"`
	ProviderID    string     `json:"providerId"`
	ServiceID     *string    `json:"serviceId,omitempty"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UnreadCount   int        `json:"unreadCount"`
}

type ConversationsListResponse struct {
	Items []ConversationItem `json:"items"`
}

type SendMessageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
}

type MessagesListResponse struct {
	Items      []event.Message `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

type MarkReadResponse struct {
	Status string `json:"status"`
}

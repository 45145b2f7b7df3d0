package domain

import (
	"strings"
	"time"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "ACTIVE"
	ConversationArchived ConversationStatus = "ARCHIVED"
	ConversationClosed   ConversationStatus = "CLOSED"
)

// Conversation links one client with one provider, optionally scoped to a
// booked service. At most one ACTIVE conversation may exist per
// (client, provider, service) triple; the store enforces this with a unique
// index and concurrent creates resolve by re-fetch.
type Conversation struct {
	ID            string             `db:"id"`
	ClientID      string             `db:"client_id"`
	ProviderID    string             `db:"provider_id"`
	ServiceID     *string            `db:"service_id"`
	Status        ConversationStatus `db:"status"`
	LastMessageAt *time.Time         `db:"last_message_at"`
	CreatedAt     time.Time          `db:"created_at"`
}

// Participant reports whether userID is the client or the provider side.
func (c *Conversation) Participant(userID string) bool {
	return c.ClientID == userID || c.ProviderID == userID
}

// Peer returns the other participant's id.
func (c *Conversation) Peer(userID string) string {
	if c.ClientID == userID {
		return c.ProviderID
	}
	return c.ClientID
}

// ConversationRoom is the broadcast scope name for a conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

// RoomConversation recovers the conversation id from a room name.
func RoomConversation(roomID string) (string, bool) {
	id, ok := strings.CutPrefix(roomID, "conversation:")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

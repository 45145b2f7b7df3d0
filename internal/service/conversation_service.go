package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eventora/chat-service/internal/domain"
	"github.com/eventora/chat-service/internal/event"
)

const maxContentLen = 4000

// ConversationRepo is the durable store for conversation rows.
type ConversationRepo interface {
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	FindActive(ctx context.Context, clientID, providerID string, serviceID *string) (*domain.Conversation, error)
	Create(ctx context.Context, c *domain.Conversation) error
	ListActiveForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

// MessageRepo is the durable store for message rows.
type MessageRepo interface {
	Insert(ctx context.Context, m *domain.Message) error
	List(ctx context.Context, conversationID, after string, limit int) ([]domain.Message, string, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int, error)
}

// Broadcaster is the live-delivery surface the service pushes into after a
// durable write. Delivery is best-effort; a broadcast that goes nowhere is
// recovered by the history fetch on reconnect.
type Broadcaster interface {
	BroadcastToRoom(roomID string, ev event.Envelope)
	SendToUser(userID string, ev event.Envelope)
}

// ConversationService owns the exactly-once persistence contract: every
// message is written through here first and only then re-emitted live.
type ConversationService struct {
	convs ConversationRepo
	msgs  MessageRepo
	relay Broadcaster
}

func NewConversationService(convs ConversationRepo, msgs MessageRepo, relay Broadcaster) *ConversationService {
	return &ConversationService{convs: convs, msgs: msgs, relay: relay}
}

// FindOrCreate returns the single ACTIVE conversation for the triple,
// creating it when absent. A unique-violation on create means another caller
// won the race, so the row is re-fetched instead of surfacing an error.
func (s *ConversationService) FindOrCreate(ctx context.Context, clientID, providerID string, serviceID *string) (*domain.Conversation, error) {
	if clientID == "" || providerID == "" || clientID == providerID {
		return nil, domain.ErrInvalidMessage
	}

	c, err := s.convs.FindActive(ctx, clientID, providerID, serviceID)
	if err == nil {
		return c, nil
	}
	if err != domain.ErrConversationNotFound {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	c = &domain.Conversation{
		ClientID:   clientID,
		ProviderID: providerID,
		ServiceID:  serviceID,
	}
	err = s.convs.Create(ctx, c)
	if err == nil {
		return c, nil
	}
	if err == domain.ErrDuplicateConversation {
		return s.convs.FindActive(ctx, clientID, providerID, serviceID)
	}
	return nil, fmt.Errorf("create conversation: %w", err)
}

// SendMessage persists a participant-authored message (single write, single
// source of truth), then broadcasts new_message to the conversation room and
// pushes a conversation_updated with a per-participant unread count to each
// personal channel. Persistence failure aborts before any broadcast.
// System types are not accepted here; they only enter through
// SendSystemMessage, so a caller can never forge provider-attributed notices.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID, content string, msgType domain.MessageType) (*domain.Message, error) {
	if msgType == "" {
		msgType = domain.MessageText
	}
	if !msgType.Valid() || msgType.System() {
		return nil, domain.ErrInvalidMessage
	}
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Participant(senderID) {
		return nil, domain.ErrNotParticipant
	}

	return s.deliver(ctx, conv, senderID, content, msgType)
}

// SendSystemMessage posts an automated notice, attributed to the provider
// side. Reachable only from internal producers (the booking-notice worker),
// never from the request surfaces.
func (s *ConversationService) SendSystemMessage(ctx context.Context, conversationID, content string, msgType domain.MessageType) (*domain.Message, error) {
	if !msgType.Valid() || !msgType.System() {
		return nil, domain.ErrInvalidMessage
	}
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return s.deliver(ctx, conv, conv.ProviderID, content, msgType)
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLen {
		return "", domain.ErrInvalidMessage
	}
	return content, nil
}

// deliver is the shared persist-then-broadcast tail of both send paths.
// Writes land only in ACTIVE conversations.
func (s *ConversationService) deliver(ctx context.Context, conv *domain.Conversation, senderID, content string, msgType domain.MessageType) (*domain.Message, error) {
	if conv.Status != domain.ConversationActive {
		return nil, domain.ErrConversationClosed
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := s.convs.TouchLastMessage(ctx, conv.ID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	view := event.MessageFrom(*msg)
	s.relay.BroadcastToRoom(domain.ConversationRoom(conv.ID), event.Envelope{
		Event: event.NewMessage,
		Payload: event.NewMessagePayload{
			Message:        view,
			ConversationID: conv.ID,
		},
	})

	// Each participant gets their own freshly derived count; reusing one
	// side's count for both is exactly the drift this guards against.
	for _, userID := range []string{conv.ClientID, conv.ProviderID} {
		n, err := s.msgs.CountUnread(ctx, conv.ID, userID)
		if err != nil {
			slog.Warn("unread count failed, skipping live update",
				"conversation", conv.ID, "user", userID, "err", err)
			continue
		}
		s.relay.SendToUser(userID, event.Envelope{
			Event: event.ConversationUpdated,
			Payload: event.ConversationUpdatedPayload{
				ConversationID: conv.ID,
				LastMessage:    view,
				UnreadCount:    n,
			},
		})
	}

	return msg, nil
}

// MarkAsRead bulk-flips every unread message not sent by the reader. When
// nothing changed the call is a silent no-op, so repeated idempotent calls do
// not storm the room with receipts.
func (s *ConversationService) MarkAsRead(ctx context.Context, conversationID, readerID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.Participant(readerID) {
		return domain.ErrNotParticipant
	}

	n, err := s.msgs.MarkRead(ctx, conv.ID, readerID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n == 0 {
		return nil
	}

	// The peer flips sent messages to "seen"; the reader's other tabs zero
	// their badge without re-deriving it.
	s.relay.BroadcastToRoom(domain.ConversationRoom(conv.ID), event.Envelope{
		Event: event.MessagesRead,
		Payload: event.MessagesReadPayload{
			ReaderID:       readerID,
			ConversationID: conv.ID,
		},
	})
	s.relay.SendToUser(readerID, event.Envelope{
		Event:   event.UnreadReset,
		Payload: event.UnreadResetPayload{ConversationID: conv.ID},
	})

	return nil
}

// Access verifies the user may read the conversation. Non-participants get
// the same answer as a missing conversation. Status is not checked: history,
// receipts and room joins stay available on ARCHIVED/CLOSED conversations,
// only writes are gated (see deliver).
func (s *ConversationService) Access(ctx context.Context, conversationID, userID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.Participant(userID) {
		return domain.ErrNotParticipant
	}
	return nil
}

// History pages through a conversation's messages for a participant.
func (s *ConversationService) History(ctx context.Context, conversationID, userID, after string, limit int) ([]domain.Message, string, error) {
	if err := s.Access(ctx, conversationID, userID); err != nil {
		return nil, "", err
	}
	return s.msgs.List(ctx, conversationID, after, limit)
}

// ListActive returns the user's ACTIVE conversations. The relay uses it to
// rebuild room memberships at connect time.
func (s *ConversationService) ListActive(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.convs.ListActiveForUser(ctx, userID)
}

// ConversationSummary is a conversation plus the asking user's unread count.
type ConversationSummary struct {
	Conversation domain.Conversation
	UnreadCount  int
}

// ListSummaries backs the conversation-list endpoint: each row carries the
// caller's own unread count, derived fresh from storage.
func (s *ConversationService) ListSummaries(ctx context.Context, userID string) ([]ConversationSummary, error) {
	convs, err := s.convs.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		n, err := s.msgs.CountUnread(ctx, c.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		out = append(out, ConversationSummary{Conversation: c, UnreadCount: n})
	}
	return out, nil
}

// UnreadCount derives the user's unread count for one conversation.
func (s *ConversationService) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	if err := s.Access(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	return s.msgs.CountUnread(ctx, conversationID, userID)
}

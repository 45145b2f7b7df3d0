package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eventora/chat-service/internal/domain"
	"github.com/eventora/chat-service/internal/event"
	"github.com/eventora/chat-service/internal/security"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ConversationSvc is the slice of the conversation service the relay needs.
// The relay never creates messages: inbound send_message is rejected and the
// durable write path stays the single writer.
type ConversationSvc interface {
	ListActive(ctx context.Context, userID string) ([]domain.Conversation, error)
	Access(ctx context.Context, conversationID, userID string) error
	MarkAsRead(ctx context.Context, conversationID, readerID string) error
}

type Server struct {
	upgrader websocket.Upgrader
	registry *Registry
	convSvc  ConversationSvc
	verifier security.Verifier

	handlers  map[string]handlerFunc
	pingEvery time.Duration
	svcCallTO time.Duration
}

// session is one admitted connection plus its per-connection state.
type session struct {
	handle Handle
	userID string
	typing *rate.Limiter
}

type handlerFunc func(ctx context.Context, sess *session, payload json.RawMessage)

func NewServer(registry *Registry, convSvc ConversationSvc, verifier security.Verifier) *Server {
	s := &Server{
		registry: registry,
		convSvc:  convSvc,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
		svcCallTO: 5 * time.Second,
	}
	s.handlers = map[string]handlerFunc{
		event.JoinRoom:    s.handleJoinRoom,
		event.LeaveRoom:   s.handleLeaveRoom,
		event.TypingStart: s.handleTypingStart,
		event.TypingStop:  s.handleTypingStop,
		event.MarkRead:    s.handleMarkRead,
		event.SendMessage: s.handleSendMessage,
	}
	return s
}

// HandleWS serves GET /ws. The bearer credential is verified before the
// upgrade completes, so an unauthenticated socket never reaches the registry.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "user", id.UserID, "err", err)
		return
	}

	h := newHandle(conn, id.UserID, s.pingEvery)
	s.registry.Register(h)
	sess := &session{
		handle: h,
		userID: id.UserID,
		// typing indicators are transient; excess churn is dropped, not queued
		typing: rate.NewLimiter(rate.Every(500*time.Millisecond), 4),
	}

	_ = h.Send(event.Envelope{
		Event:   event.Connected,
		Payload: event.ConnectedPayload{UserID: id.UserID},
	})

	// Bulk-join is eventually consistent with connect; clients that know a
	// room can close the gap with an explicit join_room.
	go s.joinActiveRooms(h, id.UserID)

	s.readLoop(r.Context(), sess)

	s.registry.Unregister(h)
	_ = h.Close()
}

func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("access_token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func (s *Server) joinActiveRooms(h Handle, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.svcCallTO)
	defer cancel()

	convs, err := s.convSvc.ListActive(ctx, userID)
	if err != nil {
		slog.Warn("ws bulk join failed", "user", userID, "err", err)
		return
	}
	for _, c := range convs {
		s.registry.JoinRoom(h, domain.ConversationRoom(c.ID))
	}
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	conn := sess.handle.(*wsHandle).conn
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in event.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.replyError(sess, "invalid event frame")
			continue
		}
		s.dispatch(ctx, sess, in)
	}
}

// dispatch routes one inbound event through the handler table. Handlers run
// on the connection's read goroutine and never hold registry locks across
// service calls, so a slow persistence call only stalls its own connection.
func (s *Server) dispatch(ctx context.Context, sess *session, in event.Inbound) {
	inboundEvents.WithLabelValues(in.Event).Inc()

	h, ok := s.handlers[in.Event]
	if !ok {
		s.replyError(sess, "unknown event: "+in.Event)
		return
	}
	h(ctx, sess, in.Payload)
}

func (s *Server) handleJoinRoom(ctx context.Context, sess *session, payload json.RawMessage) {
	convID, ok := s.roomPayload(sess, payload)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.svcCallTO)
	defer cancel()
	if err := s.convSvc.Access(ctx, convID, sess.userID); err != nil {
		s.replyError(sess, "conversation not found")
		return
	}
	s.registry.JoinRoom(sess.handle, domain.ConversationRoom(convID))
}

func (s *Server) handleLeaveRoom(_ context.Context, sess *session, payload json.RawMessage) {
	convID, ok := s.roomPayload(sess, payload)
	if !ok {
		return
	}
	s.registry.LeaveRoom(sess.handle, domain.ConversationRoom(convID))
}

func (s *Server) handleTypingStart(ctx context.Context, sess *session, payload json.RawMessage) {
	s.relayTyping(sess, payload, true)
}

func (s *Server) handleTypingStop(ctx context.Context, sess *session, payload json.RawMessage) {
	s.relayTyping(sess, payload, false)
}

// relayTyping re-emits a transient typing indicator to the room minus the
// sender. No persistence, at-most-once.
func (s *Server) relayTyping(sess *session, payload json.RawMessage, isTyping bool) {
	convID, ok := s.roomPayload(sess, payload)
	if !ok {
		return
	}
	roomID := domain.ConversationRoom(convID)
	if !s.registry.InRoom(sess.handle, roomID) {
		return
	}
	if !sess.typing.Allow() {
		return
	}

	s.registry.BroadcastToRoomExcept(roomID, sess.userID, event.Envelope{
		Event: event.Typing,
		Payload: event.TypingPayload{
			UserID:         sess.userID,
			ConversationID: convID,
			IsTyping:       isTyping,
		},
	})
}

func (s *Server) handleMarkRead(ctx context.Context, sess *session, payload json.RawMessage) {
	convID, ok := s.roomPayload(sess, payload)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.svcCallTO)
	defer cancel()
	if err := s.convSvc.MarkAsRead(ctx, convID, sess.userID); err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) || errors.Is(err, domain.ErrNotParticipant) {
			s.replyError(sess, "conversation not found")
			return
		}
		slog.Error("ws mark read failed", "conversation", convID, "user", sess.userID, "err", err)
		s.replyError(sess, "mark read failed")
	}
}

// handleSendMessage rejects message creation on the live channel. Only the
// durable write path creates messages; the relay re-broadcasts what is
// already persisted.
func (s *Server) handleSendMessage(_ context.Context, sess *session, _ json.RawMessage) {
	s.replyError(sess, "send_message is not accepted on the live channel; use the message API")
}

func (s *Server) roomPayload(sess *session, payload json.RawMessage) (string, bool) {
	var p event.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
		s.replyError(sess, "roomId is required")
		return "", false
	}
	convID, ok := domain.RoomConversation(p.RoomID)
	if !ok {
		s.replyError(sess, "unknown room: "+p.RoomID)
		return "", false
	}
	return convID, true
}

// replyError is scoped to the offending connection; errors are never
// broadcast to a room.
func (s *Server) replyError(sess *session, msg string) {
	_ = sess.handle.Send(event.Envelope{
		Event:   event.Error,
		Payload: event.ErrorPayload{Message: msg},
	})
}

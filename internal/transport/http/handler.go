package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eventora/chat-service/internal/domain"
	"github.com/eventora/chat-service/internal/event"
	"github.com/eventora/chat-service/internal/postgres"
	"github.com/eventora/chat-service/internal/service"
	httpmw "github.com/eventora/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	convSvc *service.ConversationService
}

func NewHandler(convSvc *service.ConversationService) *Handler {
	return &Handler{convSvc: convSvc}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainErr maps service errors to statuses. Missing conversations and
// non-participant access look identical to the caller on purpose.
func writeDomainErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound), errors.Is(err, domain.ErrNotParticipant):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
	case errors.Is(err, domain.ErrInvalidMessage):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid message"})
	case errors.Is(err, domain.ErrConversationClosed):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "conversation closed"})
	case errors.Is(err, postgres.ErrInvalidCursor):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
	default:
		slog.Error("handler."+op, slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// POST /conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	// a client opens a conversation towards a provider; the authenticated
	// side is pinned to the caller
	clientID, providerID := req.ClientID, req.ProviderID
	switch id.Role {
	case domain.RoleClient:
		clientID = id.UserID
	case domain.RoleProvider:
		providerID = id.UserID
	}

	conv, err := h.convSvc.FindOrCreate(r.Context(), clientID, providerID, req.ServiceID)
	if err != nil {
		writeDomainErr(w, "CreateConversation", err)
		return
	}

	n, err := h.convSvc.UnreadCount(r.Context(), conv.ID, id.UserID)
	if err != nil {
		writeDomainErr(w, "CreateConversation", err)
		return
	}
	writeJSON(w, http.StatusOK, conversationItem(*conv, n))
}

// GET /conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())

	items, err := h.convSvc.ListSummaries(r.Context(), id.UserID)
	if err != nil {
		writeDomainErr(w, "ListConversations", err)
		return
	}

	resp := ConversationsListResponse{Items: make([]ConversationItem, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, conversationItem(it.Conversation, it.UnreadCount))
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /conversations/{id}/messages — the durable write path. The relay only
// re-broadcasts what this endpoint already persisted.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	convID := chi.URLParam(r, "id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	msg, err := h.convSvc.SendMessage(r.Context(), convID, id.UserID, req.Content, domain.MessageType(req.MessageType))
	if err != nil {
		writeDomainErr(w, "SendMessage", err)
		return
	}
	writeJSON(w, http.StatusCreated, event.MessageFrom(*msg))
}

// GET /conversations/{id}/messages?limit=&cursor=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	convID := chi.URLParam(r, "id")

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	msgs, next, err := h.convSvc.History(r.Context(), convID, id.UserID, cursor, limit)
	if err != nil {
		writeDomainErr(w, "GetMessages", err)
		return
	}

	resp := MessagesListResponse{Items: make([]event.Message, 0, len(msgs)), NextCursor: next}
	for _, m := range msgs {
		resp.Items = append(resp.Items, event.MessageFrom(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /conversations/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	convID := chi.URLParam(r, "id")

	if err := h.convSvc.MarkAsRead(r.Context(), convID, id.UserID); err != nil {
		writeDomainErr(w, "MarkRead", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkReadResponse{Status: "read"})
}

func conversationItem(c domain.Conversation, unread int) ConversationItem {
	return ConversationItem{
		ID:            c.ID,
		ClientID:      c.ClientID,
		ProviderID:    c.ProviderID,
		ServiceID:     c.ServiceID,
		Status:        string(c.Status),
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UnreadCount:   unread,
	}
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventora/chat-service/internal/domain"
	"github.com/eventora/chat-service/internal/event"
	"github.com/eventora/chat-service/internal/security"
	"github.com/eventora/chat-service/internal/service"
	"github.com/eventora/chat-service/internal/transport/ws"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal in-memory store backing the service under the REST surface

type stubConvRepo struct {
	convs map[string]*domain.Conversation
}

func (r *stubConvRepo) Get(_ context.Context, id string) (*domain.Conversation, error) {
	if c, ok := r.convs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrConversationNotFound
}

func (r *stubConvRepo) FindActive(_ context.Context, clientID, providerID string, serviceID *string) (*domain.Conversation, error) {
	for _, c := range r.convs {
		if c.ClientID == clientID && c.ProviderID == providerID && c.Status == domain.ConversationActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *stubConvRepo) Create(_ context.Context, c *domain.Conversation) error {
	c.ID = uuid.NewString()
	c.Status = domain.ConversationActive
	c.CreatedAt = time.Now()
	cp := *c
	r.convs[c.ID] = &cp
	return nil
}

func (r *stubConvRepo) ListActiveForUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, c := range r.convs {
		if c.Participant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubConvRepo) TouchLastMessage(_ context.Context, id string, at time.Time) error {
	if c, ok := r.convs[id]; ok {
		c.LastMessageAt = &at
	}
	return nil
}

type stubMsgRepo struct {
	msgs []domain.Message
}

func (r *stubMsgRepo) Insert(_ context.Context, m *domain.Message) error {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *stubMsgRepo) List(_ context.Context, conversationID, _ string, _ int) ([]domain.Message, string, error) {
	var out []domain.Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, "", nil
}

func (r *stubMsgRepo) MarkRead(_ context.Context, conversationID, readerID string) (int64, error) {
	var n int64
	for i := range r.msgs {
		m := &r.msgs[i]
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *stubMsgRepo) CountUnread(_ context.Context, conversationID, userID string) (int, error) {
	n := 0
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.SenderID != userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func newTestRouter(t *testing.T) (http.Handler, *security.JWTVerifier, *domain.Conversation) {
	t.Helper()

	convRepo := &stubConvRepo{convs: map[string]*domain.Conversation{}}
	conv := &domain.Conversation{ClientID: "client-1", ProviderID: "provider-1"}
	require.NoError(t, convRepo.Create(context.Background(), conv))

	registry := ws.NewRegistry()
	svc := service.NewConversationService(convRepo, &stubMsgRepo{}, registry)
	verifier := security.NewJWTVerifier([]byte("test-secret"), "eventora-auth", time.Second)
	wsServer := ws.NewServer(registry, svc, verifier)

	return NewRouter(NewHandler(svc), wsServer, verifier), verifier, conv
}

func token(t *testing.T, v *security.JWTVerifier, userID string, role domain.Role) string {
	t.Helper()
	tok, err := v.Sign(security.Identity{UserID: userID, Role: role}, time.Minute)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequiresToken(t *testing.T) {
	router, _, conv := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/conversations/"+conv.ID+"/messages", "", `{"content":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_SendAndFetchMessage(t *testing.T) {
	router, v, conv := newTestRouter(t)
	clientTok := token(t, v, "client-1", domain.RoleClient)
	providerTok := token(t, v, "provider-1", domain.RoleProvider)

	rec := doJSON(t, router, http.MethodPost, "/conversations/"+conv.ID+"/messages", clientTok, `{"content":"Hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sent event.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "Hello", sent.Content)
	assert.Equal(t, "client-1", sent.SenderID)

	rec = doJSON(t, router, http.MethodGet, "/conversations/"+conv.ID+"/messages", providerTok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list MessagesListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, sent.ID, list.Items[0].ID)
}

func TestAPI_NonParticipantGets404(t *testing.T) {
	router, v, conv := newTestRouter(t)
	tok := token(t, v, "intruder", domain.RoleClient)

	rec := doJSON(t, router, http.MethodPost, "/conversations/"+conv.ID+"/messages", tok, `{"content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations/"+conv.ID+"/messages", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SystemTypeNotAcceptedOverREST(t *testing.T) {
	router, v, conv := newTestRouter(t)

	// neither an outsider nor a participant can post a booking notice
	for _, user := range []string{"intruder", "client-1"} {
		tok := token(t, v, user, domain.RoleClient)
		rec := doJSON(t, router, http.MethodPost, "/conversations/"+conv.ID+"/messages", tok,
			`{"content":"booking confirmed!","messageType":"BOOKING_CONFIRMED"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "user %s", user)
	}

	providerTok := token(t, v, "provider-1", domain.RoleProvider)
	rec := doJSON(t, router, http.MethodGet, "/conversations/"+conv.ID+"/messages", providerTok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list MessagesListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items, "nothing may be persisted for a rejected notice")
}

func TestAPI_MarkReadAndUnreadCount(t *testing.T) {
	router, v, conv := newTestRouter(t)
	clientTok := token(t, v, "client-1", domain.RoleClient)
	providerTok := token(t, v, "provider-1", domain.RoleProvider)

	rec := doJSON(t, router, http.MethodPost, "/conversations/"+conv.ID+"/messages", clientTok, `{"content":"ping"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations", providerTok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var convList ConversationsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convList))
	require.Len(t, convList.Items, 1)
	assert.Equal(t, 1, convList.Items[0].UnreadCount)

	rec = doJSON(t, router, http.MethodPost, "/conversations/"+conv.ID+"/read", providerTok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations", providerTok, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convList))
	assert.Zero(t, convList.Items[0].UnreadCount)
}

func TestAPI_WSHandshakeRefusedWithoutToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package http

import (
	"net/http"
	"time"

	"github.com/eventora/chat-service/internal/security"
	httpmw "github.com/eventora/chat-service/internal/transport/http/middleware"
	"github.com/eventora/chat-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler, wsServer *ws.Server, verifier security.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.Logging)

	// live channel; the relay does its own handshake auth
	r.Get("/ws", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/conversations", func(cr chi.Router) {
			cr.Post("/", h.CreateConversation)
			cr.Get("/", h.ListConversations)

			cr.Route("/{id}", func(rr chi.Router) {
				rr.Get("/messages", h.GetMessages)
				rr.Post("/messages", h.SendMessage)
				rr.Post("/read", h.MarkRead)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

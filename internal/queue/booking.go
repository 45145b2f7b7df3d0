package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventora/chat-service/internal/domain"

	"github.com/hibiken/asynq"
)

// TaskBookingNotice carries automated booking notices into conversations.
// The handler goes through ConversationService.SendSystemMessage, so the
// single-writer rule holds for system messages too.
const TaskBookingNotice = "chat:booking_notice"

type BookingNoticePayload struct {
	ConversationID string `json:"conversationId"`
	Event          string `json:"event"` // created|confirmed|cancelled|completed
	Note           string `json:"note"`
}

// MessageSender is the slice of the conversation service the worker needs.
type MessageSender interface {
	SendSystemMessage(ctx context.Context, conversationID, content string, msgType domain.MessageType) (*domain.Message, error)
}

// Client enqueues booking notices from the billing/booking side of the
// platform.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (c *Client) EnqueueBookingNotice(ctx context.Context, p BookingNoticePayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal booking notice: %w", err)
	}
	_, err = c.client.EnqueueContext(ctx, asynq.NewTask(TaskBookingNotice, data),
		asynq.Queue("chat"), asynq.MaxRetry(5))
	return err
}

func (c *Client) Close() error { return c.client.Close() }

// Server runs the booking-notice worker.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(redisAddr string, svc MessageSender) *Server {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"chat": 1, "default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("queue task failed", "type", task.Type(), "err", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBookingNotice, func(ctx context.Context, t *asynq.Task) error {
		var p BookingNoticePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal booking notice: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		// attributed to the conversation's provider inside the service
		_, err := svc.SendSystemMessage(ctx, p.ConversationID, p.Note, noticeType(p.Event))
		return err
	})

	return &Server{server: srv, mux: mux}
}

func noticeType(bookingEvent string) domain.MessageType {
	switch bookingEvent {
	case "created":
		return domain.MessageBookingCreated
	case "confirmed":
		return domain.MessageBookingConfirmed
	case "cancelled":
		return domain.MessageBookingCancelled
	case "completed":
		return domain.MessageBookingCompleted
	default:
		return domain.MessageSystem
	}
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

func (s *Server) Shutdown() { s.server.Shutdown() }

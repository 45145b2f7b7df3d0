package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/eventora/chat-service/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	egressCapacity = 128
)

var errHandleClosed = errors.New("connection closed")

// Handle is one live transport connection for a user. A user may hold several
// at once (multiple tabs or devices); the registry fans out to all of them.
type Handle interface {
	ID() string
	UserID() string
	Send(ev event.Envelope) error
	Close() error
}

// wsHandle wraps a websocket and serializes outbound writes through a
// buffered egress channel. A slow client that fills the buffer is closed
// rather than allowed to stall fan-out.
type wsHandle struct {
	id     string
	userID string

	conn   *websocket.Conn
	egress chan event.Envelope
	once   sync.Once
	closed chan struct{}
}

func newHandle(conn *websocket.Conn, userID string, pingEvery time.Duration) *wsHandle {
	h := &wsHandle{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		egress: make(chan event.Envelope, egressCapacity),
		closed: make(chan struct{}),
	}
	go h.writeLoop(pingEvery)
	return h
}

func (h *wsHandle) ID() string     { return h.id }
func (h *wsHandle) UserID() string { return h.userID }

func (h *wsHandle) Send(ev event.Envelope) error {
	select {
	case <-h.closed:
		return errHandleClosed
	case h.egress <- ev:
		return nil
	default:
		_ = h.Close()
		return errors.New("egress buffer full")
	}
}

func (h *wsHandle) Close() error {
	var err error
	h.once.Do(func() {
		close(h.closed)
		err = h.conn.Close()
	})
	return err
}

func (h *wsHandle) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-h.closed:
			return
		case ev := <-h.egress:
			if err := h.write(ev); err != nil {
				_ = h.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := h.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = h.Close()
				return
			}
		}
	}
}

func (h *wsHandle) write(ev event.Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := h.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

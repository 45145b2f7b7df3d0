package ws

import (
	"log/slog"
	"sync"

	"github.com/eventora/chat-service/internal/event"
)

// Registry is the authoritative, process-local map of live connections:
// user id -> handles and room id -> handles. All mutation is serialized
// behind the mutex; fan-out works on snapshots so no lock is held while
// writing to sockets.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[Handle]struct{}
	rooms  map[string]map[Handle]struct{}
	joined map[Handle]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[Handle]struct{}),
		rooms:  make(map[string]map[Handle]struct{}),
		joined: make(map[Handle]map[string]struct{}),
	}
}

func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[h.UserID()]
	if !ok {
		set = make(map[Handle]struct{})
		r.users[h.UserID()] = set
	}
	set[h] = struct{}{}
	r.joined[h] = make(map[string]struct{})

	activeConnections.Inc()
}

// Unregister removes the handle from the user set and every joined room in
// one critical section, so a disconnect can never leave a dangling room
// membership. Idempotent: disconnect may race an explicit leave.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, tracked := r.joined[h]
	if !tracked {
		return
	}

	for roomID := range rooms {
		r.dropFromRoom(h, roomID)
	}
	delete(r.joined, h)

	if set, ok := r.users[h.UserID()]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(r.users, h.UserID())
		}
	}

	activeConnections.Dec()
}

// JoinRoom is a no-op when the handle already joined the room or was never
// registered (join can race a disconnect).
func (r *Registry) JoinRoom(h Handle, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, tracked := r.joined[h]
	if !tracked {
		return
	}
	if _, already := rooms[roomID]; already {
		return
	}
	rooms[roomID] = struct{}{}

	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[Handle]struct{})
		r.rooms[roomID] = set
	}
	set[h] = struct{}{}
}

func (r *Registry) LeaveRoom(h Handle, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rooms, tracked := r.joined[h]; tracked {
		delete(rooms, roomID)
	}
	r.dropFromRoom(h, roomID)
}

func (r *Registry) dropFromRoom(h Handle, roomID string) {
	if set, ok := r.rooms[roomID]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// InRoom reports whether the handle currently belongs to the room.
func (r *Registry) InRoom(h Handle, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.joined[h][roomID]
	return ok
}

// JoinedRooms returns a copy of the handle's memberships.
func (r *Registry) JoinedRooms(h Handle) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.joined[h]))
	for roomID := range r.joined[h] {
		out = append(out, roomID)
	}
	return out
}

// BroadcastToRoom delivers ev to every handle currently in the room.
// Connections that join later simply miss it; catch-up happens through the
// durable history fetch, not replay.
func (r *Registry) BroadcastToRoom(roomID string, ev event.Envelope) {
	r.fanOut(r.roomSnapshot(roomID, ""), ev)
}

// BroadcastToRoomExcept skips every handle belonging to exceptUserID,
// covering sender-excluded events like typing indicators.
func (r *Registry) BroadcastToRoomExcept(roomID, exceptUserID string, ev event.Envelope) {
	r.fanOut(r.roomSnapshot(roomID, exceptUserID), ev)
}

// SendToUser delivers ev to all live handles of the user (the personal
// channel: every open tab gets unread resets and conversation updates).
func (r *Registry) SendToUser(userID string, ev event.Envelope) {
	r.mu.RLock()
	targets := make([]Handle, 0, len(r.users[userID]))
	for h := range r.users[userID] {
		targets = append(targets, h)
	}
	r.mu.RUnlock()

	r.fanOut(targets, ev)
}

func (r *Registry) roomSnapshot(roomID, exceptUserID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]Handle, 0, len(r.rooms[roomID]))
	for h := range r.rooms[roomID] {
		if exceptUserID != "" && h.UserID() == exceptUserID {
			continue
		}
		targets = append(targets, h)
	}
	return targets
}

// fanOut is best-effort: a dead handle is logged and skipped, delivery to the
// rest continues. Durability lives in the store, not here.
func (r *Registry) fanOut(targets []Handle, ev event.Envelope) {
	for _, h := range targets {
		if err := h.Send(ev); err != nil {
			droppedDeliveries.Inc()
			slog.Debug("ws delivery skipped",
				"event", ev.Event, "user", h.UserID(), "err", err)
		}
	}
}

package ws

import (
	"errors"
	"testing"

	"github.com/eventora/chat-service/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle records deliveries; dead simulates a handle whose peer vanished.
type fakeHandle struct {
	id     string
	userID string
	dead   bool
	sent   []event.Envelope
}

func (f *fakeHandle) ID() string     { return f.id }
func (f *fakeHandle) UserID() string { return f.userID }
func (f *fakeHandle) Close() error   { return nil }

func (f *fakeHandle) Send(ev event.Envelope) error {
	if f.dead {
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, ev)
	return nil
}

func newFake(id, userID string) *fakeHandle {
	return &fakeHandle{id: id, userID: userID}
}

func ev(name string) event.Envelope {
	return event.Envelope{Event: name}
}

func TestRegistry_SendToUserReachesAllHandles(t *testing.T) {
	r := NewRegistry()
	tab1 := newFake("h1", "client-1")
	tab2 := newFake("h2", "client-1")
	other := newFake("h3", "provider-1")
	r.Register(tab1)
	r.Register(tab2)
	r.Register(other)

	r.SendToUser("client-1", ev(event.UnreadReset))

	require.Len(t, tab1.sent, 1)
	require.Len(t, tab2.sent, 1)
	assert.Empty(t, other.sent)
	assert.Equal(t, tab1.sent[0], tab2.sent[0])
}

func TestRegistry_BroadcastToRoom(t *testing.T) {
	r := NewRegistry()
	a := newFake("h1", "client-1")
	b := newFake("h2", "provider-1")
	late := newFake("h3", "provider-2")
	r.Register(a)
	r.Register(b)
	r.Register(late)

	r.JoinRoom(a, "conversation:c1")
	r.JoinRoom(b, "conversation:c1")

	r.BroadcastToRoom("conversation:c1", ev(event.NewMessage))

	require.Len(t, a.sent, 1)
	require.Len(t, b.sent, 1)
	// joins after the broadcast miss it; catch-up is the history fetch
	r.JoinRoom(late, "conversation:c1")
	assert.Empty(t, late.sent)
}

func TestRegistry_BroadcastExceptSkipsAllUserHandles(t *testing.T) {
	r := NewRegistry()
	tab1 := newFake("h1", "client-1")
	tab2 := newFake("h2", "client-1")
	peer := newFake("h3", "provider-1")
	for _, h := range []*fakeHandle{tab1, tab2, peer} {
		r.Register(h)
		r.JoinRoom(h, "conversation:c1")
	}

	r.BroadcastToRoomExcept("conversation:c1", "client-1", ev(event.Typing))

	assert.Empty(t, tab1.sent)
	assert.Empty(t, tab2.sent)
	require.Len(t, peer.sent, 1)
}

func TestRegistry_DeadHandleDoesNotAbortFanOut(t *testing.T) {
	r := NewRegistry()
	dead := &fakeHandle{id: "h1", userID: "client-1", dead: true}
	alive := newFake("h2", "provider-1")
	r.Register(dead)
	r.Register(alive)
	r.JoinRoom(dead, "conversation:c1")
	r.JoinRoom(alive, "conversation:c1")

	r.BroadcastToRoom("conversation:c1", ev(event.NewMessage))

	require.Len(t, alive.sent, 1)
}

func TestRegistry_UnregisterClearsAllMemberships(t *testing.T) {
	r := NewRegistry()
	h := newFake("h1", "client-1")
	r.Register(h)
	r.JoinRoom(h, "conversation:c1")
	r.JoinRoom(h, "conversation:c2")

	r.Unregister(h)

	assert.Empty(t, r.JoinedRooms(h))
	r.BroadcastToRoom("conversation:c1", ev(event.NewMessage))
	r.SendToUser("client-1", ev(event.UnreadReset))
	assert.Empty(t, h.sent)

	// disconnect can race an explicit leave; second removal is a no-op
	r.Unregister(h)
}

func TestRegistry_JoinTwiceIsNoOp(t *testing.T) {
	r := NewRegistry()
	h := newFake("h1", "client-1")
	r.Register(h)
	r.JoinRoom(h, "conversation:c1")
	r.JoinRoom(h, "conversation:c1")

	require.Len(t, r.JoinedRooms(h), 1)

	r.BroadcastToRoom("conversation:c1", ev(event.NewMessage))
	require.Len(t, h.sent, 1, "double join must not double deliveries")
}

func TestRegistry_JoinWithoutRegisterIsIgnored(t *testing.T) {
	r := NewRegistry()
	h := newFake("h1", "client-1")

	r.JoinRoom(h, "conversation:c1")

	r.BroadcastToRoom("conversation:c1", ev(event.NewMessage))
	assert.Empty(t, h.sent)
}

func TestRegistry_LeaveRoom(t *testing.T) {
	r := NewRegistry()
	h := newFake("h1", "client-1")
	r.Register(h)
	r.JoinRoom(h, "conversation:c1")
	require.True(t, r.InRoom(h, "conversation:c1"))

	r.LeaveRoom(h, "conversation:c1")

	assert.False(t, r.InRoom(h, "conversation:c1"))
	r.BroadcastToRoom("conversation:c1", ev(event.NewMessage))
	assert.Empty(t, h.sent)
}

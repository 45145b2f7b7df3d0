package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationRoomRoundTrip(t *testing.T) {
	room := ConversationRoom("c1")
	assert.Equal(t, "conversation:c1", room)

	id, ok := RoomConversation(room)
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
}

func TestRoomConversation_Invalid(t *testing.T) {
	for _, in := range []string{"", "conversation:", "user:u1", "c1"} {
		_, ok := RoomConversation(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{ClientID: "c", ProviderID: "p"}

	assert.True(t, c.Participant("c"))
	assert.True(t, c.Participant("p"))
	assert.False(t, c.Participant("x"))
	assert.Equal(t, "p", c.Peer("c"))
	assert.Equal(t, "c", c.Peer("p"))
}

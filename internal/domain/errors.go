package domain

import "errors"

var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrNotParticipant        = errors.New("user is not a participant of the conversation")
	ErrDuplicateConversation = errors.New("active conversation already exists")
	ErrConversationClosed    = errors.New("conversation is not active")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrInvalidToken          = errors.New("invalid token")
)

package conversation

import "errors"

var (
	// ErrConversationNotFound is returned when a conversation ID does not exist.
	ErrConversationNotFound = errors.New("conversation not found")
)

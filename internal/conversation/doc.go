// Package conversation stores AI assistant conversations and their chat
// messages.
//
// The assistant itself is an external collaborator; this package only
// persists what the client sends. Deleting a conversation cascades to its
// chat messages and saved route plans.
package conversation

package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/conversation"
)

type createConversationRequest struct {
	Title    string         `json:"title" validate:"required,max=255"`
	LLMModel string         `json:"llmModel" validate:"max=64"`
	Ext      map[string]any `json:"ext"`
}

type addChatRequest struct {
	ConversationID int64          `json:"conversationId" validate:"required,gt=0"`
	Role           string         `json:"role" validate:"omitempty,oneof=user assistant system"`
	Type           string         `json:"type" validate:"omitempty,oneof=TEXT IMAGE ROUTE POI"`
	Content        string         `json:"content" validate:"required"`
	Ext            map[string]any `json:"ext"`
}

type deleteConversationRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// handleCreateConversation handles POST /conversations/add.json.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c := &conversation.Conversation{Title: req.Title, LLMModel: req.LLMModel, Ext: req.Ext}
	if err := s.conversations.Create(r.Context(), c); err != nil {
		s.writeServiceError(w, r, err, "create conversation")
		return
	}

	s.auditLog(audit.ActionCreate, audit.EntityConversation, strconv.FormatInt(c.ID, 10), userIDFor(r, ""),
		map[string]any{"title": c.Title})
	writeData(w, c)
}

// handleAddChat handles POST /conversations/addChat.json. The stored
// message is returned in values.
func (s *Server) handleAddChat(w http.ResponseWriter, r *http.Request) {
	var req addChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m := &conversation.ChatMessage{
		ConversationID: req.ConversationID,
		Role:           req.Role,
		Type:           req.Type,
		Content:        req.Content,
		Ext:            req.Ext,
	}
	if err := s.conversations.AddChat(r.Context(), m); err != nil {
		s.writeServiceError(w, r, err, "add chat")
		return
	}
	writeValues(w, []conversation.ChatMessage{*m})
}

// handleListConversations handles GET /conversations/list.json.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.conversations.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "list conversations")
		return
	}
	writeValues(w, list)
}

// handleListChats handles GET /conversations/chatList.json?conversationId=.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "conversationId")
	if !ok {
		return
	}
	chats, err := s.conversations.ListChats(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "list chats")
		return
	}
	writeValues(w, chats)
}

// handleGetConversation handles GET /conversations/get.json?id=.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "id")
	if !ok {
		return
	}
	c, err := s.conversations.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get conversation")
		return
	}
	writeData(w, c)
}

// handleDeleteConversation handles POST /conversations/delete.json.
// Chats and route plans are removed with the conversation.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	var req deleteConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.conversations.Delete(r.Context(), req.ID); err != nil {
		s.writeServiceError(w, r, err, "delete conversation")
		return
	}

	s.auditLog(audit.ActionDelete, audit.EntityConversation, strconv.FormatInt(req.ID, 10), userIDFor(r, ""), nil)
	writeData(w, map[string]any{"id": req.ID})
}

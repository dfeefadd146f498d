package conversation

import "time"

// DefaultLLMModel is stored when the client does not name a model.
const DefaultLLMModel = "defaultModel"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message types.
const (
	TypeText  = "TEXT"
	TypeImage = "IMAGE"
	TypeRoute = "ROUTE"
	TypePOI   = "POI"
)

// Conversation is one assistant session as shown in the client's history.
type Conversation struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	LLMModel    string         `json:"llmModel"`
	Ext         map[string]any `json:"ext"`
	GmtCreate   time.Time      `json:"gmtCreate"`
	GmtModified time.Time      `json:"gmtModified"`

	// ChatList is only populated by Get.
	ChatList []ChatMessage `json:"chatList,omitempty"`
}

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversationId"`
	Role           string         `json:"role"`
	Type           string         `json:"type"`
	Content        string         `json:"content"`
	Ext            map[string]any `json:"ext"`
	GmtCreate      time.Time      `json:"gmtCreate"`
	GmtModified    time.Time      `json:"gmtModified"`
}

package models

// Message types stored in conversation histories.
const (
	MessageTypeHuman = "human"
	MessageTypeAI    = "ai"
)

// ChatMessage is one entry in a conversation history. Type is "human" or
// "ai"; anything else in a loaded file is treated as "human".
type ChatMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ConversationHistory is the wire shape returned for a single conversation.
type ConversationHistory struct {
	ConversationID string        `json:"conversation_id"`
	ChatHistory    []ChatMessage `json:"chat_history"`
}

package models

import "time"

// MessageType identifies who authored a chat message.
type MessageType string

const (
	MessageUser MessageType = "user"
	MessageAI   MessageType = "ai"
)

// ChatMessage is a single turn in a conversation. Messages are never modified once created.
type ChatMessage struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Sources   []Source    `json:"sources,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Conversation is an ordered thread of messages sharing one topic.
// MessageCount always equals len(Messages).
type Conversation struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Timestamp    time.Time     `json:"timestamp"`
	MessageCount int           `json:"messageCount"`
	Messages     []ChatMessage `json:"messages"`
}

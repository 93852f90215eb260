// Package conversation holds the pure state transitions of the conversation list.
// Every function returns new values and leaves its inputs untouched.
package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/pkg/utils"
)

// TitleLength is the number of characters of the first query kept as the title.
const TitleLength = 50

var (
	now   = time.Now
	newID = uuid.NewString
)

// Title derives a conversation title from its first query.
func Title(query string) string {
	return utils.TruncateRunes(query, TitleLength)
}

func newMessage(kind models.MessageType, content string, sources []models.Source) models.ChatMessage {
	return models.ChatMessage{
		ID:        "msg_" + newID(),
		Type:      kind,
		Content:   content,
		Sources:   sources,
		Timestamp: now(),
	}
}

// Create starts a conversation seeded with the user's first query.
func Create(query string) models.Conversation {
	msg := newMessage(models.MessageUser, query, nil)
	return models.Conversation{
		ID:           "conv_" + newID(),
		Title:        Title(query),
		Timestamp:    msg.Timestamp,
		MessageCount: 1,
		Messages:     []models.ChatMessage{msg},
	}
}

// AppendUserMessage returns c with a user message for query appended.
func AppendUserMessage(c models.Conversation, query string) models.Conversation {
	return appendMessage(c, newMessage(models.MessageUser, query, nil))
}

// AppendAIMessage returns c with an answer message built from result appended.
func AppendAIMessage(c models.Conversation, result models.SearchResult) models.Conversation {
	sources := make([]models.Source, len(result.Sources))
	copy(sources, result.Sources)
	return appendMessage(c, newMessage(models.MessageAI, result.Text, sources))
}

func appendMessage(c models.Conversation, msg models.ChatMessage) models.Conversation {
	messages := make([]models.ChatMessage, len(c.Messages), len(c.Messages)+1)
	copy(messages, c.Messages)
	c.Messages = append(messages, msg)
	c.MessageCount = len(c.Messages)
	c.Timestamp = msg.Timestamp
	return c
}

// Upsert drops any conversation with c's id from coll and puts c first.
func Upsert(coll []models.Conversation, c models.Conversation) []models.Conversation {
	out := make([]models.Conversation, 0, len(coll)+1)
	out = append(out, c)
	for _, existing := range coll {
		if existing.ID != c.ID {
			out = append(out, existing)
		}
	}
	return out
}

// Delete returns coll without the conversation with the given id.
func Delete(coll []models.Conversation, id string) []models.Conversation {
	out := make([]models.Conversation, 0, len(coll))
	for _, existing := range coll {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return out
}

// Find returns the conversation with the given id.
func Find(coll []models.Conversation, id string) (models.Conversation, bool) {
	for _, c := range coll {
		if c.ID == id {
			return c, true
		}
	}
	return models.Conversation{}, false
}

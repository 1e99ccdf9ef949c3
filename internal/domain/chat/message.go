package chat

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyBody rejects messages with no text before any round-trip happens.
var ErrEmptyBody = errors.New("chat: message body is required")

// Message is one chat message. Immutable once created except for the read
// flag, which transitions false to true exactly once and only through a
// reader other than the sender.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Body           string
	CreatedAt      time.Time
	Read           bool
}

// NewMessage validates and builds a message.
func NewMessage(id MessageID, conversation ConversationID, sender UserID, body string, now time.Time) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyBody
	}
	if strings.TrimSpace(string(id)) == "" {
		return Message{}, errors.New("chat: message id is required")
	}
	if strings.TrimSpace(string(conversation)) == "" {
		return Message{}, errors.New("chat: conversation id is required")
	}
	if strings.TrimSpace(string(sender)) == "" {
		return Message{}, errors.New("chat: sender is required")
	}
	if now.IsZero() {
		now = time.Now()
	}
	return Message{
		ID:             id,
		ConversationID: conversation,
		SenderID:       sender,
		Body:           body,
		CreatedAt:      now.UTC(),
	}, nil
}

// CountUnread derives the unread total for viewer from a message snapshot:
// messages not yet read whose sender is someone else. The count is always
// recomputed from the collection, never incrementally maintained.
func CountUnread(messages []Message, viewer UserID) int {
	count := 0
	for _, msg := range messages {
		if !msg.Read && msg.SenderID != viewer {
			count++
		}
	}
	return count
}

// UnreadIDs returns the identities of messages viewer has not read yet.
func UnreadIDs(messages []Message, viewer UserID) []MessageID {
	ids := make([]MessageID, 0)
	for _, msg := range messages {
		if !msg.Read && msg.SenderID != viewer {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

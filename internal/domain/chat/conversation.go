package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrConversationNotFound is returned when a conversation cannot be located.
var ErrConversationNotFound = errors.New("chat: conversation not found")

// ErrMessageNotFound is returned when a message cannot be located.
var ErrMessageNotFound = errors.New("chat: message not found")

type (
	// ConversationID identifies a chat thread.
	ConversationID string
	// MessageID identifies a single message.
	MessageID string
	// UserID identifies a participant.
	UserID string
)

// Conversation is a thread between the user who first reached out about a
// listing (the initiator) and the listing's owner. There is exactly one
// conversation per (listing, initiator) pair. Conversations are never
// deleted; newer activity only moves them up the ordering.
type Conversation struct {
	ID            ConversationID
	ListingID     string
	Initiator     UserID
	Owner         UserID
	CreatedAt     time.Time
	LastMessageAt time.Time
}

// Participants returns both sides of the thread.
func (c Conversation) Participants() []UserID {
	return []UserID{c.Initiator, c.Owner}
}

// HasParticipant reports whether user belongs to the conversation.
func (c Conversation) HasParticipant(user UserID) bool {
	return user == c.Initiator || user == c.Owner
}

// PeerOf returns the other participant, or empty when user is not a party.
func (c Conversation) PeerOf(user UserID) UserID {
	switch user {
	case c.Initiator:
		return c.Owner
	case c.Owner:
		return c.Initiator
	}
	return ""
}

// NewConversationParams collects the values needed to open a thread.
type NewConversationParams struct {
	ID        ConversationID
	ListingID string
	Initiator UserID
	Owner     UserID
	Now       time.Time
}

// NewConversation validates params and builds a conversation.
func NewConversation(p NewConversationParams) (Conversation, error) {
	if strings.TrimSpace(string(p.ID)) == "" {
		return Conversation{}, errors.New("chat: conversation id is required")
	}
	if strings.TrimSpace(string(p.Initiator)) == "" || strings.TrimSpace(string(p.Owner)) == "" {
		return Conversation{}, errors.New("chat: both participants are required")
	}
	if p.Initiator == p.Owner {
		return Conversation{}, errors.New("chat: cannot open a conversation with yourself")
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return Conversation{
		ID:            p.ID,
		ListingID:     strings.TrimSpace(p.ListingID),
		Initiator:     p.Initiator,
		Owner:         p.Owner,
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// Store is the persistence contract for conversations and messages. List
// methods return snapshots; ordering is by creation time ascending for
// messages and last activity descending for conversations.
type Store interface {
	// GetOrCreateConversation returns the unique thread for the
	// (listing, initiator) pair, creating it on first contact.
	GetOrCreateConversation(ctx context.Context, listingID string, initiator, owner UserID, now time.Time) (Conversation, error)
	// Conversation loads one thread or ErrConversationNotFound.
	Conversation(ctx context.Context, id ConversationID) (Conversation, error)
	// ListConversations returns every thread the viewer participates in.
	ListConversations(ctx context.Context, viewer UserID) ([]Conversation, error)
	// ListMessages returns all messages of a thread ordered by creation time ascending.
	ListMessages(ctx context.Context, id ConversationID) ([]Message, error)
	// InsertMessage appends a message and advances the thread's last activity.
	InsertMessage(ctx context.Context, msg Message) error
	// MarkRead flips the read flag of the identified messages. The flag only
	// moves false to true; already-read messages are left untouched, so the
	// operation is idempotent.
	MarkRead(ctx context.Context, id ConversationID, messageIDs []MessageID) error
	// UnreadCounts returns a fresh per-conversation count of messages the
	// viewer has not read, directly from the message rows.
	UnreadCounts(ctx context.Context, viewer UserID) (map[ConversationID]int, error)
}

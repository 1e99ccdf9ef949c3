package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainchat "campusmarket/internal/domain/chat"
)

// ChatStore is an in-memory chat.Store used by tests and local wiring.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[domainchat.ConversationID]domainchat.Conversation
	messages      map[domainchat.ConversationID][]domainchat.Message
	byPair        map[string]domainchat.ConversationID
}

// NewChatStore builds an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainchat.ConversationID]domainchat.Conversation),
		messages:      make(map[domainchat.ConversationID][]domainchat.Message),
		byPair:        make(map[string]domainchat.ConversationID),
	}
}

// GetOrCreateConversation returns the unique thread for the (listing, initiator)
// pair, creating it on first contact.
func (s *ChatStore) GetOrCreateConversation(ctx context.Context, listingID string, initiator, owner domainchat.UserID, now time.Time) (domainchat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(listingID, initiator)
	if id, ok := s.byPair[key]; ok {
		return s.conversations[id], nil
	}
	conv, err := domainchat.NewConversation(domainchat.NewConversationParams{
		ID:        domainchat.ConversationID(uuid.NewString()),
		ListingID: listingID,
		Initiator: initiator,
		Owner:     owner,
		Now:       now,
	})
	if err != nil {
		return domainchat.Conversation{}, err
	}
	s.conversations[conv.ID] = conv
	s.byPair[key] = conv.ID
	return conv, nil
}

// Conversation loads one thread.
func (s *ChatStore) Conversation(ctx context.Context, id domainchat.ConversationID) (domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return domainchat.Conversation{}, domainchat.ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations returns the viewer's threads, last activity first.
func (s *ChatStore) ListConversations(ctx context.Context, viewer domainchat.UserID) ([]domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domainchat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(viewer) {
			matches = append(matches, conv)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].LastMessageAt.Equal(matches[j].LastMessageAt) {
			return matches[i].LastMessageAt.After(matches[j].LastMessageAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

// ListMessages returns a thread's messages ordered by creation time ascending.
func (s *ChatStore) ListMessages(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[id]; !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	rows := s.messages[id]
	out := make([]domainchat.Message, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// InsertMessage appends a message and advances the thread's last activity.
// Re-inserting an existing identity replaces the row instead of duplicating it.
func (s *ChatStore) InsertMessage(ctx context.Context, msg domainchat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return domainchat.ErrConversationNotFound
	}
	rows := s.messages[msg.ConversationID]
	replaced := false
	for i, row := range rows {
		if row.ID == msg.ID {
			if row.Read {
				msg.Read = true
			}
			rows[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, msg)
	}
	s.messages[msg.ConversationID] = rows
	if msg.CreatedAt.After(conv.LastMessageAt) {
		conv.LastMessageAt = msg.CreatedAt
		s.conversations[msg.ConversationID] = conv
	}
	return nil
}

// MarkRead flips the read flag false to true for the identified messages.
func (s *ChatStore) MarkRead(ctx context.Context, id domainchat.ConversationID, messageIDs []domainchat.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return domainchat.ErrConversationNotFound
	}
	wanted := make(map[domainchat.MessageID]struct{}, len(messageIDs))
	for _, messageID := range messageIDs {
		wanted[messageID] = struct{}{}
	}
	rows := s.messages[id]
	for i := range rows {
		if _, ok := wanted[rows[i].ID]; ok {
			rows[i].Read = true
		}
	}
	return nil
}

// UnreadCounts counts unread rows per conversation straight from storage.
func (s *ChatStore) UnreadCounts(ctx context.Context, viewer domainchat.UserID) (map[domainchat.ConversationID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domainchat.ConversationID]int)
	for id, conv := range s.conversations {
		if !conv.HasParticipant(viewer) {
			continue
		}
		counts[id] = domainchat.CountUnread(s.messages[id], viewer)
	}
	return counts, nil
}

func pairKey(listingID string, initiator domainchat.UserID) string {
	return strings.TrimSpace(listingID) + ":" + string(initiator)
}

var _ domainchat.Store = (*ChatStore)(nil)

package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	domainchat "campusmarket/internal/domain/chat"
)

// Store wraps Scylla queries for conversations and messages.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
}

// NewStore builds a Store.
func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger}
}

// GetOrCreateConversation returns the unique thread for the (listing, initiator)
// pair, creating it on first contact.
func (s *Store) GetOrCreateConversation(ctx context.Context, listingID string, initiator, owner domainchat.UserID, now time.Time) (domainchat.Conversation, error) {
	if s.session == nil {
		return domainchat.Conversation{}, errors.New("scylla session not initialized")
	}
	listingID = strings.TrimSpace(listingID)

	iter := s.session.
		Query(`SELECT id, listing_id, initiator, owner, created_at, last_message_at FROM conversations WHERE listing_id = ? ALLOW FILTERING`, listingID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var row conversationRow
	for iter.Scan(&row.ID, &row.ListingID, &row.Initiator, &row.Owner, &row.CreatedAt, &row.LastMessageAt) {
		if row.Initiator == string(initiator) {
			found := row.toConversation()
			if err := iter.Close(); err != nil {
				return domainchat.Conversation{}, err
			}
			return found, nil
		}
	}
	if err := iter.Close(); err != nil {
		return domainchat.Conversation{}, err
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
	if err := s.session.
		Query(`INSERT INTO conversations (id, listing_id, initiator, owner, created_at, last_message_at) VALUES (?, ?, ?, ?, ?, ?)`,
			string(conv.ID), conv.ListingID, string(conv.Initiator), string(conv.Owner), conv.CreatedAt.UTC(), conv.LastMessageAt.UTC()).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return domainchat.Conversation{}, err
	}
	return conv, nil
}

// Conversation loads one thread.
func (s *Store) Conversation(ctx context.Context, id domainchat.ConversationID) (domainchat.Conversation, error) {
	if s.session == nil {
		return domainchat.Conversation{}, errors.New("scylla session not initialized")
	}
	var row conversationRow
	if err := s.session.
		Query(`SELECT id, listing_id, initiator, owner, created_at, last_message_at FROM conversations WHERE id = ? LIMIT 1`, string(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&row.ID, &row.ListingID, &row.Initiator, &row.Owner, &row.CreatedAt, &row.LastMessageAt); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return domainchat.Conversation{}, domainchat.ErrConversationNotFound
		}
		return domainchat.Conversation{}, err
	}
	return row.toConversation(), nil
}

// ListConversations returns the viewer's threads, last activity first.
func (s *Store) ListConversations(ctx context.Context, viewer domainchat.UserID) ([]domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT id, listing_id, initiator, owner, created_at, last_message_at FROM conversations`).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	conversations := make([]domainchat.Conversation, 0)
	var row conversationRow
	for iter.Scan(&row.ID, &row.ListingID, &row.Initiator, &row.Owner, &row.CreatedAt, &row.LastMessageAt) {
		conv := row.toConversation()
		if conv.HasParticipant(viewer) {
			conversations = append(conversations, conv)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	sort.Slice(conversations, func(i, j int) bool {
		if !conversations[i].LastMessageAt.Equal(conversations[j].LastMessageAt) {
			return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
		}
		return conversations[i].ID < conversations[j].ID
	})
	return conversations, nil
}

// ListMessages returns a thread's messages ordered by creation time ascending.
func (s *Store) ListMessages(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if _, err := s.Conversation(ctx, id); err != nil {
		return nil, err
	}
	iter := s.session.
		Query(`SELECT conversation_id, message_id, sender_id, body, created_at, read FROM messages WHERE conversation_id = ?`, string(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	messages := make([]domainchat.Message, 0)
	var row messageRow
	for iter.Scan(&row.ConversationID, &row.ID, &row.SenderID, &row.Body, &row.CreatedAt, &row.Read) {
		messages = append(messages, row.toMessage())
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// InsertMessage writes a message and advances the thread's last activity.
// Rewriting an existing identity never clears an already set read flag.
func (s *Store) InsertMessage(ctx context.Context, msg domainchat.Message) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	conv, err := s.Conversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}

	var existingRead bool
	err = s.session.
		Query(`SELECT read FROM messages WHERE conversation_id = ? AND message_id = ? LIMIT 1`,
			string(msg.ConversationID), string(msg.ID)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&existingRead)
	if err != nil && !errors.Is(err, gocql.ErrNotFound) {
		return err
	}
	read := msg.Read || existingRead

	if err := s.session.
		Query(`INSERT INTO messages (conversation_id, message_id, sender_id, body, created_at, read) VALUES (?, ?, ?, ?, ?, ?)`,
			string(msg.ConversationID), string(msg.ID), string(msg.SenderID), msg.Body, msg.CreatedAt.UTC(), read).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return err
	}

	if msg.CreatedAt.After(conv.LastMessageAt) {
		// best-effort update of last_message_at
		if err := s.session.
			Query(`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
				msg.CreatedAt.UTC(), string(msg.ConversationID)).
			WithContext(ctx).
			Consistency(gocql.One).
			Exec(); err != nil && s.logger != nil {
			s.logger.Warn("failed to update last activity", "error", err, "conversation_id", msg.ConversationID)
		}
	}
	return nil
}

// MarkRead flips the read flag false to true for the identified messages.
func (s *Store) MarkRead(ctx context.Context, id domainchat.ConversationID, messageIDs []domainchat.MessageID) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	if _, err := s.Conversation(ctx, id); err != nil {
		return err
	}
	for _, messageID := range messageIDs {
		if err := s.session.
			Query(`UPDATE messages SET read = true WHERE conversation_id = ? AND message_id = ?`,
				string(id), string(messageID)).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UnreadCounts counts unread rows per conversation straight from storage.
func (s *Store) UnreadCounts(ctx context.Context, viewer domainchat.UserID) (map[domainchat.ConversationID]int, error) {
	conversations, err := s.ListConversations(ctx, viewer)
	if err != nil {
		return nil, err
	}
	counts := make(map[domainchat.ConversationID]int, len(conversations))
	for _, conv := range conversations {
		messages, err := s.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		counts[conv.ID] = domainchat.CountUnread(messages, viewer)
	}
	return counts, nil
}

type conversationRow struct {
	ID            string
	ListingID     string
	Initiator     string
	Owner         string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

func (r conversationRow) toConversation() domainchat.Conversation {
	return domainchat.Conversation{
		ID:            domainchat.ConversationID(r.ID),
		ListingID:     r.ListingID,
		Initiator:     domainchat.UserID(r.Initiator),
		Owner:         domainchat.UserID(r.Owner),
		CreatedAt:     r.CreatedAt.UTC(),
		LastMessageAt: r.LastMessageAt.UTC(),
	}
}

type messageRow struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	CreatedAt      time.Time
	Read           bool
}

func (r messageRow) toMessage() domainchat.Message {
	return domainchat.Message{
		ID:             domainchat.MessageID(r.ID),
		ConversationID: domainchat.ConversationID(r.ConversationID),
		SenderID:       domainchat.UserID(r.SenderID),
		Body:           r.Body,
		CreatedAt:      r.CreatedAt.UTC(),
		Read:           r.Read,
	}
}

var _ domainchat.Store = (*Store)(nil)

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "campusmarket/internal/domain/chat"
)

func TestGetOrCreateConversationIsUniquePerPair(t *testing.T) {
	store := NewChatStore()
	now := time.Now()

	first, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", now)
	require.NoError(t, err)
	second, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := store.GetOrCreateConversation(context.Background(), "l1", "another-buyer", "seller", now)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestInsertMessagePreservesReadOnReplace(t *testing.T) {
	store := NewChatStore()
	conv, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", time.Now())
	require.NoError(t, err)

	msg := domainchat.Message{
		ID:             "m1",
		ConversationID: conv.ID,
		SenderID:       "seller",
		Body:           "still available",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.InsertMessage(context.Background(), msg))
	require.NoError(t, store.MarkRead(context.Background(), conv.ID, []domainchat.MessageID{"m1"}))

	// A redelivered insert with Read=false must not clear the flag.
	require.NoError(t, store.InsertMessage(context.Background(), msg))

	rows, err := store.ListMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Read)
}

func TestUnreadCountsPerConversation(t *testing.T) {
	store := NewChatStore()
	now := time.Now().UTC()
	conv, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", now)
	require.NoError(t, err)

	for i, id := range []domainchat.MessageID{"m1", "m2", "m3"} {
		require.NoError(t, store.InsertMessage(context.Background(), domainchat.Message{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       "seller",
			Body:           "ping",
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.InsertMessage(context.Background(), domainchat.Message{
		ID:             "mine",
		ConversationID: conv.ID,
		SenderID:       "buyer",
		Body:           "pong",
		CreatedAt:      now.Add(10 * time.Second),
	}))

	counts, err := store.UnreadCounts(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[conv.ID])

	require.NoError(t, store.MarkRead(context.Background(), conv.ID, []domainchat.MessageID{"m1", "m2"}))
	counts, err = store.UnreadCounts(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[conv.ID])

	// Marking the same ids again changes nothing.
	require.NoError(t, store.MarkRead(context.Background(), conv.ID, []domainchat.MessageID{"m1", "m2"}))
	counts, err = store.UnreadCounts(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[conv.ID])
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	store := NewChatStore()
	now := time.Now().UTC()
	older, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", now.Add(-time.Hour))
	require.NoError(t, err)
	newer, err := store.GetOrCreateConversation(context.Background(), "l2", "buyer", "seller", now)
	require.NoError(t, err)

	rows, err := store.ListConversations(context.Background(), "buyer")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)

	require.NoError(t, store.InsertMessage(context.Background(), domainchat.Message{
		ID:             "m1",
		ConversationID: older.ID,
		SenderID:       "seller",
		Body:           "bump",
		CreatedAt:      now.Add(time.Minute),
	}))
	rows, err = store.ListConversations(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, older.ID, rows[0].ID)
}

package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginSupersedesPrior(t *testing.T) {
	slots := NewSlots(nil)

	first, firstCtx := slots.Begin(context.Background(), "feed")
	require.True(t, first.Current())
	require.NoError(t, firstCtx.Err())

	second, secondCtx := slots.Begin(context.Background(), "feed")

	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.ErrorIs(t, firstCtx.Err(), context.Canceled)
	assert.NoError(t, secondCtx.Err())
	assert.Equal(t, uint64(2), slots.Latest("feed"))
}

func TestSlotsAreIndependent(t *testing.T) {
	slots := NewSlots(nil)

	feed, _ := slots.Begin(context.Background(), "feed")
	history, _ := slots.Begin(context.Background(), "history:c1")

	assert.True(t, feed.Current())
	assert.True(t, history.Current())
	assert.Equal(t, uint64(1), slots.Latest("feed"))
	assert.Equal(t, uint64(1), slots.Latest("history:c1"))

	slots.Begin(context.Background(), "feed")
	assert.False(t, feed.Current())
	assert.True(t, history.Current())
}

func TestBeginHonorsParentContext(t *testing.T) {
	slots := NewSlots(nil)
	parent, cancel := context.WithCancel(context.Background())

	ticket, runCtx := slots.Begin(parent, "feed")
	cancel()

	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
	// Parent cancellation does not retire the ticket; only a newer Begin does.
	assert.True(t, ticket.Current())
}

func TestFinishDoesNotRetireNewerTicket(t *testing.T) {
	slots := NewSlots(nil)

	stale, _ := slots.Begin(context.Background(), "feed")
	fresh, freshCtx := slots.Begin(context.Background(), "feed")

	slots.finish(stale)
	assert.NoError(t, freshCtx.Err())
	assert.True(t, fresh.Current())
}

package bindings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/app/requests"
	"campusmarket/internal/app/view"
	"campusmarket/internal/domain/listings"
	"campusmarket/internal/infra/storage/memory"
)

type failingSavedStore struct {
	listings.SavedStore
	putErr    error
	deleteErr error
}

func (f failingSavedStore) Put(ctx context.Context, mark listings.SavedMark) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.SavedStore.Put(ctx, mark)
}

func (f failingSavedStore) Delete(ctx context.Context, viewer listings.ViewerID, listing listings.ListingID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.SavedStore.Delete(ctx, viewer, listing)
}

func TestToggleSavesAndUnsaves(t *testing.T) {
	store := memory.NewSavedStore()
	saved := NewSaved(requests.NewSlots(nil), store, "u1")

	on, err := saved.Toggle(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, on)

	persisted, err := store.IsSaved(context.Background(), "u1", "l1")
	require.NoError(t, err)
	assert.True(t, persisted)

	off, err := saved.Toggle(context.Background(), "l1")
	require.NoError(t, err)
	assert.False(t, off)

	persisted, err = store.IsSaved(context.Background(), "u1", "l1")
	require.NoError(t, err)
	assert.False(t, persisted)
}

func TestToggleRevertsWhenPersistFails(t *testing.T) {
	store := failingSavedStore{SavedStore: memory.NewSavedStore(), putErr: errors.New("write rejected")}
	saved := NewSaved(requests.NewSlots(nil), store, "u1")

	settled, err := saved.Toggle(context.Background(), "l1")
	require.ErrorIs(t, err, requests.ErrTransport)
	assert.False(t, settled, "the optimistic flip was rolled back")
	assert.False(t, saved.Snapshot("l1").Data)
}

func TestLoadReadsThrough(t *testing.T) {
	store := memory.NewSavedStore()
	require.NoError(t, store.Put(context.Background(), listings.SavedMark{Viewer: "u1", Listing: "l1"}))
	saved := NewSaved(requests.NewSlots(nil), store, "u1")

	assert.Equal(t, view.PhaseIdle, saved.Snapshot("l1").Phase)

	on, err := saved.Load(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, view.PhaseReady, saved.Snapshot("l1").Phase)
}

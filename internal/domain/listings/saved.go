package listings

import (
	"context"
	"time"
)

// ViewerID identifies the user whose saved marks are being tracked.
type ViewerID string

// SavedMark records that a viewer saved a listing. At most one exists per
// (viewer, listing) pair; presence alone means saved.
type SavedMark struct {
	Viewer    ViewerID
	Listing   ListingID
	CreatedAt time.Time
}

// SavedStore is the persistence contract for saved marks. Put and Delete are
// idempotent: saving an already-saved listing or unsaving an absent mark
// leaves the store unchanged.
type SavedStore interface {
	Put(ctx context.Context, mark SavedMark) error
	Delete(ctx context.Context, viewer ViewerID, listing ListingID) error
	IsSaved(ctx context.Context, viewer ViewerID, listing ListingID) (bool, error)
	ListByViewer(ctx context.Context, viewer ViewerID) ([]SavedMark, error)
}

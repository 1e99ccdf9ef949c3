package bindings

import (
	"context"
	"sync"
	"time"

	"campusmarket/internal/app/requests"
	"campusmarket/internal/app/view"
	"campusmarket/internal/domain/listings"
)

// Saved binds one viewer's saved marks to render state. Toggles apply
// optimistically and roll back when the persist fails; duplicate triggers on
// the same listing collapse into a single attempt.
type Saved struct {
	slots   *requests.Slots
	store   listings.SavedStore
	mutator *requests.Mutator
	viewer  listings.ViewerID
	now     func() time.Time

	mu    sync.Mutex
	marks map[listings.ListingID]bool
	known map[listings.ListingID]bool
}

// NewSaved builds a binding for viewer.
func NewSaved(slots *requests.Slots, store listings.SavedStore, viewer listings.ViewerID) *Saved {
	return &Saved{
		slots:   slots,
		store:   store,
		mutator: &requests.Mutator{},
		viewer:  viewer,
		now:     time.Now,
		marks:   make(map[listings.ListingID]bool),
		known:   make(map[listings.ListingID]bool),
	}
}

// Load reads through the saved state for one listing.
func (s *Saved) Load(ctx context.Context, listing listings.ListingID) (bool, error) {
	slot := "saved:" + string(listing)
	res := requests.Run(ctx, s.slots, slot, requests.RunOptions{}, func(ctx context.Context) (bool, error) {
		return s.store.IsSaved(ctx, s.viewer, listing)
	})
	if res.Cancelled() {
		return s.Snapshot(listing).Data, nil
	}
	if res.Err != nil {
		return false, res.Err
	}
	s.mu.Lock()
	s.marks[listing] = res.Value
	s.known[listing] = true
	s.mu.Unlock()
	return res.Value, nil
}

// Toggle flips the saved mark optimistically, persists the flip, and reverts
// on failure. The returned bool is the state after the call settles.
func (s *Saved) Toggle(ctx context.Context, listing listings.ListingID) (bool, error) {
	s.mu.Lock()
	previous := s.marks[listing]
	s.mu.Unlock()
	next := !previous

	// The direction is part of the action: a save and the following unsave
	// must never collapse into each other.
	key := "unsave:" + string(s.viewer) + ":" + string(listing)
	if next {
		key = "save:" + string(s.viewer) + ":" + string(listing)
	}
	mutation := requests.Mutation{
		Key: key,
		Apply: func() {
			s.mu.Lock()
			s.marks[listing] = next
			s.known[listing] = true
			s.mu.Unlock()
		},
		Revert: func() {
			s.mu.Lock()
			s.marks[listing] = previous
			s.mu.Unlock()
		},
		Persist: func(ctx context.Context) error {
			if next {
				return s.store.Put(ctx, listings.SavedMark{
					Viewer:    s.viewer,
					Listing:   listing,
					CreatedAt: s.now().UTC(),
				})
			}
			return s.store.Delete(ctx, s.viewer, listing)
		},
	}
	if _, err := s.mutator.Do(ctx, mutation); err != nil {
		s.mu.Lock()
		settled := s.marks[listing]
		s.mu.Unlock()
		return settled, err
	}
	s.mu.Lock()
	settled := s.marks[listing]
	s.mu.Unlock()
	return settled, nil
}

// Snapshot reports the locally known saved state for a listing. PhaseIdle
// means the state has not been loaded yet.
func (s *Saved) Snapshot(listing listings.ListingID) view.Snapshot[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[listing] {
		return view.Snapshot[bool]{Phase: view.PhaseIdle}
	}
	return view.Snapshot[bool]{Phase: view.PhaseReady, Data: s.marks[listing]}
}

// List returns every listing the viewer saved, straight from the store.
func (s *Saved) List(ctx context.Context) ([]listings.SavedMark, error) {
	marks, err := s.store.ListByViewer(ctx, s.viewer)
	if err != nil {
		return nil, requests.Classify(err)
	}
	s.mu.Lock()
	for _, mark := range marks {
		s.marks[mark.Listing] = true
		s.known[mark.Listing] = true
	}
	s.mu.Unlock()
	return marks, nil
}

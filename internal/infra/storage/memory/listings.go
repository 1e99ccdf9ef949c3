package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainlistings "campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
)

// ListingRepository is an in-memory implementation for tests and local wiring.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

// NewListingRepository builds an empty repository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

// ByID returns a listing or ErrListingNotFound.
func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	cloned := *listing
	return &cloned, nil
}

// Save stores/updates a listing entry.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *listing
	r.items[listing.ID] = &cloned
	return nil
}

// Search returns listings that satisfy provided filters.
func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts := params.Normalized()
	matches := make([]*domainlistings.Listing, 0, len(r.items))
	for _, listing := range r.items {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return domainlistings.SearchResult{}, ctx.Err()
			default:
			}
		}

		if opts.OnlyApproved && listing.Status != domainmoderation.StatusApproved {
			continue
		}
		if opts.Seller != "" && listing.Seller != opts.Seller {
			continue
		}
		if opts.Category != "" && listing.Category != opts.Category {
			continue
		}
		if opts.Condition != "" && listing.Condition != opts.Condition {
			continue
		}
		if opts.PriceMin > 0 && listing.PriceCents < opts.PriceMin {
			continue
		}
		if opts.PriceMax > 0 && listing.PriceCents > opts.PriceMax {
			continue
		}
		if opts.Query != "" && !matchQuery(listing, opts.Query) {
			continue
		}
		matches = append(matches, listing)
	}

	sort.Slice(matches, func(i, j int) bool {
		switch opts.Sort {
		case domainlistings.SortByPriceAsc:
			if matches[i].PriceCents == matches[j].PriceCents {
				return matches[i].CreatedAt.After(matches[j].CreatedAt)
			}
			return matches[i].PriceCents < matches[j].PriceCents
		case domainlistings.SortByPriceDesc:
			if matches[i].PriceCents == matches[j].PriceCents {
				return matches[i].CreatedAt.After(matches[j].CreatedAt)
			}
			return matches[i].PriceCents > matches[j].PriceCents
		default:
			if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
				return matches[i].ID < matches[j].ID
			}
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
	})

	total := len(matches)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := make([]*domainlistings.Listing, 0, end-start)
	for _, listing := range matches[start:end] {
		cloned := *listing
		page = append(page, &cloned)
	}
	return domainlistings.SearchResult{
		Items: page,
		Total: total,
	}, nil
}

func matchQuery(listing *domainlistings.Listing, needle string) bool {
	if listing == nil {
		return false
	}
	full := strings.ToLower(listing.Title + " " + listing.Description)
	return strings.Contains(full, needle)
}

var _ domainlistings.Repository = (*ListingRepository)(nil)

// SavedStore keeps saved marks in memory.
type SavedStore struct {
	mu    sync.RWMutex
	marks map[string]domainlistings.SavedMark
}

// NewSavedStore builds an empty store.
func NewSavedStore() *SavedStore {
	return &SavedStore{marks: make(map[string]domainlistings.SavedMark)}
}

// Put records a mark; saving twice leaves a single mark.
func (s *SavedStore) Put(ctx context.Context, mark domainlistings.SavedMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[savedKey(mark.Viewer, mark.Listing)] = mark
	return nil
}

// Delete removes a mark; deleting an absent mark is a no-op.
func (s *SavedStore) Delete(ctx context.Context, viewer domainlistings.ViewerID, listing domainlistings.ListingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, savedKey(viewer, listing))
	return nil
}

// IsSaved reports mark presence.
func (s *SavedStore) IsSaved(ctx context.Context, viewer domainlistings.ViewerID, listing domainlistings.ListingID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.marks[savedKey(viewer, listing)]
	return ok, nil
}

// ListByViewer returns the viewer's marks, newest first.
func (s *SavedStore) ListByViewer(ctx context.Context, viewer domainlistings.ViewerID) ([]domainlistings.SavedMark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domainlistings.SavedMark, 0)
	for _, mark := range s.marks {
		if mark.Viewer == viewer {
			matches = append(matches, mark)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].Listing < matches[j].Listing
	})
	return matches, nil
}

func savedKey(viewer domainlistings.ViewerID, listing domainlistings.ListingID) string {
	return string(viewer) + ":" + string(listing)
}

var _ domainlistings.SavedStore = (*SavedStore)(nil)

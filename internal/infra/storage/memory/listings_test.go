package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainlistings "campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
)

func seedListing(t *testing.T, repo *ListingRepository, id string, mutate func(*domainlistings.Listing)) {
	t.Helper()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:         domainlistings.ListingID(id),
		Seller:     "s1",
		Title:      "listing " + id,
		Category:   domainlistings.CategoryTextbooks,
		PriceCents: 1000,
		Now:        time.Now(),
	})
	require.NoError(t, err)
	listing.Status = domainmoderation.StatusApproved
	if mutate != nil {
		mutate(listing)
	}
	require.NoError(t, repo.Save(context.Background(), listing))
}

func searchIDs(t *testing.T, repo *ListingRepository, params domainlistings.SearchParams) []string {
	t.Helper()
	res, err := repo.Search(context.Background(), params)
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		ids = append(ids, string(item.ID))
	}
	return ids
}

func TestSearchFiltersPendingListings(t *testing.T) {
	repo := NewListingRepository()
	seedListing(t, repo, "approved", nil)
	seedListing(t, repo, "pending", func(l *domainlistings.Listing) {
		l.Status = domainmoderation.StatusPending
	})

	ids := searchIDs(t, repo, domainlistings.SearchParams{OnlyApproved: true})
	assert.Equal(t, []string{"approved"}, ids)
}

func TestSearchFiltersByCategoryAndPrice(t *testing.T) {
	repo := NewListingRepository()
	seedListing(t, repo, "book", nil)
	seedListing(t, repo, "couch", func(l *domainlistings.Listing) {
		l.Category = domainlistings.CategoryFurniture
		l.PriceCents = 9000
	})
	seedListing(t, repo, "lamp", func(l *domainlistings.Listing) {
		l.Category = domainlistings.CategoryFurniture
		l.PriceCents = 1500
	})

	ids := searchIDs(t, repo, domainlistings.SearchParams{Category: domainlistings.CategoryFurniture})
	assert.ElementsMatch(t, []string{"couch", "lamp"}, ids)

	ids = searchIDs(t, repo, domainlistings.SearchParams{
		Category: domainlistings.CategoryFurniture,
		PriceMax: 2000,
	})
	assert.Equal(t, []string{"lamp"}, ids)
}

func TestSearchMatchesQueryInTitleAndDescription(t *testing.T) {
	repo := NewListingRepository()
	seedListing(t, repo, "a", func(l *domainlistings.Listing) { l.Title = "Road bike, barely used" })
	seedListing(t, repo, "b", func(l *domainlistings.Listing) { l.Description = "comes with a bike rack" })
	seedListing(t, repo, "c", nil)

	ids := searchIDs(t, repo, domainlistings.SearchParams{Query: "BIKE"})
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSearchSortsByPrice(t *testing.T) {
	repo := NewListingRepository()
	seedListing(t, repo, "mid", func(l *domainlistings.Listing) { l.PriceCents = 500 })
	seedListing(t, repo, "cheap", func(l *domainlistings.Listing) { l.PriceCents = 100 })
	seedListing(t, repo, "dear", func(l *domainlistings.Listing) { l.PriceCents = 900 })

	ids := searchIDs(t, repo, domainlistings.SearchParams{Sort: domainlistings.SortByPriceAsc})
	assert.Equal(t, []string{"cheap", "mid", "dear"}, ids)

	ids = searchIDs(t, repo, domainlistings.SearchParams{Sort: domainlistings.SortByPriceDesc})
	assert.Equal(t, []string{"dear", "mid", "cheap"}, ids)
}

func TestSearchPagination(t *testing.T) {
	repo := NewListingRepository()
	base := time.Now()
	for i, id := range []string{"one", "two", "three", "four", "five"} {
		createdAt := base.Add(-time.Duration(i) * time.Minute)
		seedListing(t, repo, id, func(l *domainlistings.Listing) { l.CreatedAt = createdAt })
	}

	res, err := repo.Search(context.Background(), domainlistings.SearchParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.True(t, res.HasMore(0, len(res.Items)))
	require.Len(t, res.Items, 2)
	assert.Equal(t, domainlistings.ListingID("one"), res.Items[0].ID)

	res, err = repo.Search(context.Background(), domainlistings.SearchParams{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, domainlistings.ListingID("five"), res.Items[0].ID)

	res, err = repo.Search(context.Background(), domainlistings.SearchParams{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestSavedStoreIsIdempotent(t *testing.T) {
	store := NewSavedStore()
	mark := domainlistings.SavedMark{Viewer: "u1", Listing: "l1", CreatedAt: time.Now()}

	require.NoError(t, store.Put(context.Background(), mark))
	require.NoError(t, store.Put(context.Background(), mark))

	marks, err := store.ListByViewer(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, marks, 1)

	require.NoError(t, store.Delete(context.Background(), "u1", "l1"))
	require.NoError(t, store.Delete(context.Background(), "u1", "l1"))

	saved, err := store.IsSaved(context.Background(), "u1", "l1")
	require.NoError(t, err)
	assert.False(t, saved)
}

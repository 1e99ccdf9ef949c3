package bindings

import (
	"context"
	"sync"
	"time"

	"campusmarket/internal/app/requests"
	"campusmarket/internal/app/view"
	"campusmarket/internal/domain/listings"
)

const feedSlot = "feed"

// FeedData is what a feed screen renders.
type FeedData struct {
	Items   []*listings.Listing
	Total   int
	HasMore bool
}

// Feed binds the filtered listing feed to render state. Changing filters
// issues a fresh authoritative fetch on the feed slot; pagination extends the
// current page in the background without hiding data.
type Feed struct {
	slots   *requests.Slots
	repo    listings.Repository
	model   *view.Model[FeedData]
	timeout time.Duration

	mu      sync.Mutex
	filters listings.SearchParams
}

// NewFeed builds an idle feed binding.
func NewFeed(slots *requests.Slots, repo listings.Repository, timeout time.Duration) *Feed {
	if timeout <= 0 {
		timeout = requests.DefaultTimeout
	}
	return &Feed{
		slots:   slots,
		repo:    repo,
		model:   view.NewModel[FeedData](),
		timeout: timeout,
	}
}

// Apply replaces the filters and runs an initial fetch. A slower fetch for
// the previous filters can never overwrite the result of this one.
func (f *Feed) Apply(ctx context.Context, filters listings.SearchParams) error {
	filters.Offset = 0
	filters.OnlyApproved = true
	f.mu.Lock()
	f.filters = filters
	f.mu.Unlock()
	return f.fetchInitial(ctx)
}

// Retry re-runs the fetch for the current filters.
func (f *Feed) Retry(ctx context.Context) error {
	return f.fetchInitial(ctx)
}

// LoadMore fetches the next page on the same slot, so a concurrent filter
// change supersedes it. Data stays visible while the page loads.
func (f *Feed) LoadMore(ctx context.Context) error {
	if !f.model.BeginMore() {
		return f.fetchInitial(ctx)
	}
	snapshot := f.model.Snapshot()

	f.mu.Lock()
	params := f.filters
	f.mu.Unlock()
	params.Offset = len(snapshot.Data.Items)

	res := f.search(ctx, params)
	if res.Cancelled() {
		return nil
	}
	if res.Err != nil {
		f.model.Fail(res.Err)
		return res.Err
	}
	f.commitPage(res, snapshot.Data.Items)
	return nil
}

// Snapshot returns the current render state.
func (f *Feed) Snapshot() view.Snapshot[FeedData] {
	return f.model.Snapshot()
}

func (f *Feed) fetchInitial(ctx context.Context) error {
	f.model.BeginInitial()

	f.mu.Lock()
	params := f.filters
	f.mu.Unlock()
	params.Offset = 0

	res := f.search(ctx, params)
	if res.Cancelled() {
		return nil
	}
	if res.Err != nil {
		f.model.Fail(res.Err)
		return res.Err
	}
	f.commitPage(res, nil)
	return nil
}

// commitPage folds a settled search into the model unless a newer fetch took
// the feed slot between resolution and commit; the newer fetch owns the model
// then.
func (f *Feed) commitPage(res requests.Result[listings.SearchResult], current []*listings.Listing) {
	if res.Seq != f.slots.Latest(feedSlot) {
		return
	}
	merged := mergeListings(current, res.Value.Items)
	f.model.Commit(FeedData{
		Items:   merged,
		Total:   res.Value.Total,
		HasMore: len(merged) < res.Value.Total,
	}, len(merged) == 0)
}

func (f *Feed) search(ctx context.Context, params listings.SearchParams) requests.Result[listings.SearchResult] {
	return requests.Run(ctx, f.slots, feedSlot, requests.RunOptions{Timeout: f.timeout}, func(ctx context.Context) (listings.SearchResult, error) {
		return f.repo.Search(ctx, params)
	})
}

// mergeListings appends page onto current, deduplicating by listing identity.
func mergeListings(current, page []*listings.Listing) []*listings.Listing {
	seen := make(map[listings.ListingID]struct{}, len(current))
	merged := make([]*listings.Listing, 0, len(current)+len(page))
	for _, item := range current {
		seen[item.ID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range page {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		merged = append(merged, item)
	}
	return merged
}

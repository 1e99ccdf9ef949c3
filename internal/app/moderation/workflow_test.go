package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmarket/internal/app/requests"
	"campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
	"campusmarket/internal/infra/storage/memory"
)

type capturingPublisher struct {
	entries []domainmoderation.AuditEntry
	err     error
}

func (p *capturingPublisher) PublishAudit(ctx context.Context, entry domainmoderation.AuditEntry) error {
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entry)
	return nil
}

func listingTarget(id string) domainmoderation.Target {
	return domainmoderation.Target{Kind: domainmoderation.TargetListing, ID: id}
}

func seedListing(t *testing.T, repo *memory.ListingRepository, id string) *listings.Listing {
	t.Helper()
	listing, err := listings.NewListing(listings.CreateListingParams{
		ID:         listings.ListingID(id),
		Seller:     "seller-1",
		Title:      "calculus textbook",
		Category:   listings.CategoryTextbooks,
		PriceCents: 2500,
		Now:        time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), listing))
	return listing
}

func TestSubmitThenApprove(t *testing.T) {
	store := memory.NewModerationStore()
	repo := memory.NewListingRepository()
	publisher := &capturingPublisher{}
	w := NewWorkflow(store, repo, publisher, nil)
	seedListing(t, repo, "l1")

	require.NoError(t, w.Submit(context.Background(), listingTarget("l1"), "seller-1"))
	record, err := store.Record(context.Background(), listingTarget("l1"))
	require.NoError(t, err)
	assert.Equal(t, domainmoderation.StatusPending, record.Status)

	require.NoError(t, w.Approve(context.Background(), listingTarget("l1"), "admin-1"))

	record, err = store.Record(context.Background(), listingTarget("l1"))
	require.NoError(t, err)
	assert.Equal(t, domainmoderation.StatusApproved, record.Status)
	assert.Equal(t, "admin-1", record.DecidedBy)
	assert.False(t, record.DecidedAt.IsZero())

	listing, err := repo.ByID(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, domainmoderation.StatusApproved, listing.Status)

	trail, err := w.Audit(context.Background(), listingTarget("l1"))
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "submit", trail[0].Action)
	assert.Equal(t, "approve", trail[1].Action)
	assert.Len(t, publisher.entries, 2)
}

func TestRejectRequiresReason(t *testing.T) {
	store := memory.NewModerationStore()
	w := NewWorkflow(store, nil, nil, nil)
	require.NoError(t, w.Submit(context.Background(), listingTarget("l1"), "seller-1"))

	err := w.Reject(context.Background(), listingTarget("l1"), "admin-1", "")
	require.ErrorIs(t, err, requests.ErrValidation)
	require.ErrorIs(t, err, domainmoderation.ErrReasonRequired)

	require.NoError(t, w.Reject(context.Background(), listingTarget("l1"), "admin-1", "stock photo"))
	record, err := store.Record(context.Background(), listingTarget("l1"))
	require.NoError(t, err)
	assert.Equal(t, domainmoderation.StatusRejected, record.Status)
	assert.Equal(t, "stock photo", record.Reason)
}

func TestDecisionsRequirePending(t *testing.T) {
	store := memory.NewModerationStore()
	w := NewWorkflow(store, nil, nil, nil)
	require.NoError(t, w.Submit(context.Background(), listingTarget("l1"), "seller-1"))
	require.NoError(t, w.Approve(context.Background(), listingTarget("l1"), "admin-1"))

	err := w.Approve(context.Background(), listingTarget("l1"), "admin-2")
	require.ErrorIs(t, err, requests.ErrConflict)
	require.ErrorIs(t, err, domainmoderation.ErrNotPending)

	err = w.Reject(context.Background(), listingTarget("l1"), "admin-2", "late objection")
	assert.ErrorIs(t, err, requests.ErrConflict)
}

func TestResubmissionStartsNewReview(t *testing.T) {
	store := memory.NewModerationStore()
	w := NewWorkflow(store, nil, nil, nil)
	target := listingTarget("l1")

	require.NoError(t, w.Submit(context.Background(), target, "seller-1"))
	require.NoError(t, w.Reject(context.Background(), target, "admin-1", "blurry photos"))
	require.NoError(t, w.Submit(context.Background(), target, "seller-1"))

	record, err := store.Record(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, domainmoderation.StatusPending, record.Status)
	assert.Empty(t, record.Reason)

	require.NoError(t, w.Approve(context.Background(), target, "admin-1"))
	trail, err := w.Audit(context.Background(), target)
	require.NoError(t, err)
	assert.Len(t, trail, 4)
}

func TestCountsAggregateByKind(t *testing.T) {
	store := memory.NewModerationStore()
	w := NewWorkflow(store, nil, nil, nil)

	require.NoError(t, w.Submit(context.Background(), listingTarget("l1"), "s1"))
	require.NoError(t, w.Submit(context.Background(), listingTarget("l2"), "s2"))
	require.NoError(t, w.Submit(context.Background(), listingTarget("l3"), "s3"))
	require.NoError(t, w.Approve(context.Background(), listingTarget("l1"), "admin"))
	require.NoError(t, w.Reject(context.Background(), listingTarget("l2"), "admin", "prohibited item"))

	counts, err := w.Counts(context.Background(), domainmoderation.TargetListing)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 1, counts.Approved)
	assert.Equal(t, 1, counts.Rejected)

	other, err := w.Counts(context.Background(), domainmoderation.TargetIdentityDocument)
	require.NoError(t, err)
	assert.Zero(t, other.Pending+other.Approved+other.Rejected)
}

func TestPublisherFailureDoesNotBlockDecision(t *testing.T) {
	store := memory.NewModerationStore()
	publisher := &capturingPublisher{err: errors.New("broker down")}
	w := NewWorkflow(store, nil, publisher, nil)

	require.NoError(t, w.Submit(context.Background(), listingTarget("l1"), "seller-1"))
	require.NoError(t, w.Approve(context.Background(), listingTarget("l1"), "admin-1"))

	record, err := store.Record(context.Background(), listingTarget("l1"))
	require.NoError(t, err)
	assert.Equal(t, domainmoderation.StatusApproved, record.Status)
}

func TestSubmitValidatesTarget(t *testing.T) {
	w := NewWorkflow(memory.NewModerationStore(), nil, nil, nil)
	err := w.Submit(context.Background(), domainmoderation.Target{}, "actor")
	assert.ErrorIs(t, err, requests.ErrValidation)
}

package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campusmarket/internal/app/requests"
	"campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
)

// AuditPublisher fans audit entries out to the event broker. Publishing is
// best-effort; the store's audit trail is the record of truth.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, entry domainmoderation.AuditEntry) error
}

// Workflow is the approve/reject state machine for listings and identity
// documents. Every transition appends exactly one audit entry. The sync core
// consumes this only through read-only status counts.
type Workflow struct {
	store     domainmoderation.Store
	listings  listings.Repository
	publisher AuditPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewWorkflow builds a workflow. listingsRepo and publisher may be nil;
// without a listings repository only the moderation record carries status.
func NewWorkflow(store domainmoderation.Store, listingsRepo listings.Repository, publisher AuditPublisher, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:     store,
		listings:  listingsRepo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit resets the target to pending. A fresh submission after a rejection
// starts a new review attempt.
func (w *Workflow) Submit(ctx context.Context, target domainmoderation.Target, actor string) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %w", requests.ErrValidation, domainmoderation.ErrTargetRequired)
	}
	now := w.now().UTC()
	record := domainmoderation.Record{
		Target:      target,
		Status:      domainmoderation.StatusPending,
		SubmittedAt: now,
	}
	if err := w.store.SaveRecord(ctx, record); err != nil {
		return requests.Classify(err)
	}
	w.mirrorListingStatus(ctx, target, domainmoderation.StatusPending)
	return w.audit(ctx, actor, "submit", target, "")
}

// Approve moves a pending target to approved. Approving anything else is a
// conflict: each submission is decided at most once.
func (w *Workflow) Approve(ctx context.Context, target domainmoderation.Target, actor string) error {
	return w.decide(ctx, target, actor, domainmoderation.StatusApproved, "")
}

// Reject moves a pending target to rejected with a mandatory reason.
func (w *Workflow) Reject(ctx context.Context, target domainmoderation.Target, actor, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: %w", requests.ErrValidation, domainmoderation.ErrReasonRequired)
	}
	return w.decide(ctx, target, actor, domainmoderation.StatusRejected, reason)
}

// Counts returns dashboard aggregates for one target kind, read-only.
func (w *Workflow) Counts(ctx context.Context, kind domainmoderation.TargetKind) (domainmoderation.StatusCounts, error) {
	counts, err := w.store.CountsByKind(ctx, kind)
	if err != nil {
		return domainmoderation.StatusCounts{}, requests.Classify(err)
	}
	return counts, nil
}

// Audit returns the append-only trail for one target.
func (w *Workflow) Audit(ctx context.Context, target domainmoderation.Target) ([]domainmoderation.AuditEntry, error) {
	entries, err := w.store.ListAudit(ctx, target)
	if err != nil {
		return nil, requests.Classify(err)
	}
	return entries, nil
}

func (w *Workflow) decide(ctx context.Context, target domainmoderation.Target, actor string, status domainmoderation.Status, reason string) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %w", requests.ErrValidation, domainmoderation.ErrTargetRequired)
	}
	record, err := w.store.Record(ctx, target)
	if err != nil {
		return requests.Classify(err)
	}
	if record.Status != domainmoderation.StatusPending {
		return fmt.Errorf("%w: %w", requests.ErrConflict, domainmoderation.ErrNotPending)
	}
	now := w.now().UTC()
	record.Status = status
	record.Reason = reason
	record.DecidedAt = now
	record.DecidedBy = actor
	if err := w.store.SaveRecord(ctx, record); err != nil {
		return requests.Classify(err)
	}
	w.mirrorListingStatus(ctx, target, status)

	action := "approve"
	detail := ""
	if status == domainmoderation.StatusRejected {
		action = "reject"
		detail = reason
	}
	return w.audit(ctx, actor, action, target, detail)
}

func (w *Workflow) audit(ctx context.Context, actor, action string, target domainmoderation.Target, detail string) error {
	entry := domainmoderation.AuditEntry{
		ID:     uuid.NewString(),
		Actor:  actor,
		Action: action,
		Target: target,
		At:     w.now().UTC(),
		Detail: detail,
	}
	if err := w.store.AppendAudit(ctx, entry); err != nil {
		return requests.Classify(err)
	}
	if w.publisher != nil {
		if err := w.publisher.PublishAudit(ctx, entry); err != nil && w.logger != nil {
			w.logger.Warn("audit event publish failed", "action", action, "target_id", target.ID, "error", err)
		}
	}
	return nil
}

// mirrorListingStatus keeps the status carried on the listing row in step
// with the moderation record, so feed queries can filter on it directly.
func (w *Workflow) mirrorListingStatus(ctx context.Context, target domainmoderation.Target, status domainmoderation.Status) {
	if w.listings == nil || target.Kind != domainmoderation.TargetListing {
		return
	}
	listing, err := w.listings.ByID(ctx, listings.ListingID(target.ID))
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("listing status mirror skipped", "listing_id", target.ID, "error", err)
		}
		return
	}
	listing.Status = status
	listing.Touch(w.now())
	if err := w.listings.Save(ctx, listing); err != nil && w.logger != nil {
		w.logger.Warn("listing status mirror failed", "listing_id", target.ID, "error", err)
	}
}

package moderation

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrRecordNotFound    = errors.New("moderation: record not found")
	ErrReasonRequired    = errors.New("moderation: rejection reason is required")
	ErrNotPending        = errors.New("moderation: record is not pending")
	ErrTargetRequired    = errors.New("moderation: target is required")
	ErrUnknownTargetKind = errors.New("moderation: unknown target kind")
)

// Status is the review state carried by a moderated entity.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// TargetKind names the kind of entity under review.
type TargetKind string

const (
	TargetListing          TargetKind = "listing"
	TargetIdentityDocument TargetKind = "identity_document"
)

// Target identifies one entity under review.
type Target struct {
	Kind TargetKind
	ID   string
}

// Valid reports whether the target names a reviewable entity.
func (t Target) Valid() bool {
	if strings.TrimSpace(t.ID) == "" {
		return false
	}
	return t.Kind == TargetListing || t.Kind == TargetIdentityDocument
}

// Record tracks the review state of one target. A pending record moves to
// approved or rejected exactly once per submission; a fresh submission resets
// it to pending. Rejection carries a mandatory reason.
type Record struct {
	Target      Target
	Status      Status
	Reason      string
	SubmittedAt time.Time
	DecidedAt   time.Time
	DecidedBy   string
}

// AuditEntry is one append-only line of the moderation audit trail.
type AuditEntry struct {
	ID     string
	Actor  string
	Action string
	Target Target
	At     time.Time
	Detail string
}

// StatusCounts aggregates records by status for one target kind.
type StatusCounts struct {
	Pending  int
	Approved int
	Rejected int
}

// Store is the persistence contract for moderation records and their audit
// trail. Audit entries are append-only and never rewritten.
type Store interface {
	Record(ctx context.Context, target Target) (Record, error)
	SaveRecord(ctx context.Context, record Record) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, target Target) ([]AuditEntry, error)
	CountsByKind(ctx context.Context, kind TargetKind) (StatusCounts, error)
}

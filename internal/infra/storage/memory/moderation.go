package memory

import (
	"context"
	"sort"
	"sync"

	domainmoderation "campusmarket/internal/domain/moderation"
)

// ModerationStore keeps moderation records and their audit trail in memory.
type ModerationStore struct {
	mu      sync.RWMutex
	records map[string]domainmoderation.Record
	audit   []domainmoderation.AuditEntry
}

// NewModerationStore builds an empty store.
func NewModerationStore() *ModerationStore {
	return &ModerationStore{records: make(map[string]domainmoderation.Record)}
}

// Record loads the review state of one target.
func (s *ModerationStore) Record(ctx context.Context, target domainmoderation.Target) (domainmoderation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[targetKey(target)]
	if !ok {
		return domainmoderation.Record{}, domainmoderation.ErrRecordNotFound
	}
	return record, nil
}

// SaveRecord stores the current review state.
func (s *ModerationStore) SaveRecord(ctx context.Context, record domainmoderation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[targetKey(record.Target)] = record
	return nil
}

// AppendAudit adds one line to the append-only trail.
func (s *ModerationStore) AppendAudit(ctx context.Context, entry domainmoderation.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// ListAudit returns the trail for one target in append order.
func (s *ModerationStore) ListAudit(ctx context.Context, target domainmoderation.Target) ([]domainmoderation.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domainmoderation.AuditEntry, 0)
	for _, entry := range s.audit {
		if entry.Target == target {
			matches = append(matches, entry)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].At.Before(matches[j].At)
	})
	return matches, nil
}

// CountsByKind aggregates record statuses for one target kind.
func (s *ModerationStore) CountsByKind(ctx context.Context, kind domainmoderation.TargetKind) (domainmoderation.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := domainmoderation.StatusCounts{}
	for _, record := range s.records {
		if record.Target.Kind != kind {
			continue
		}
		switch record.Status {
		case domainmoderation.StatusPending:
			counts.Pending++
		case domainmoderation.StatusApproved:
			counts.Approved++
		case domainmoderation.StatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}

func targetKey(target domainmoderation.Target) string {
	return string(target.Kind) + ":" + target.ID
}

var _ domainmoderation.Store = (*ModerationStore)(nil)

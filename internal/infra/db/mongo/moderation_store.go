package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainmoderation "campusmarket/internal/domain/moderation"
)

type ModerationStore struct {
	records *mongo.Collection
	audit   *mongo.Collection
}

func NewModerationStore(db *mongo.Database) *ModerationStore {
	return &ModerationStore{
		records: db.Collection("moderation_records"),
		audit:   db.Collection("moderation_audit"),
	}
}

func (s *ModerationStore) Record(ctx context.Context, target domainmoderation.Target) (domainmoderation.Record, error) {
	var doc recordDocument
	if err := s.records.FindOne(ctx, bson.M{"_id": recordID(target)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainmoderation.Record{}, domainmoderation.ErrRecordNotFound
		}
		return domainmoderation.Record{}, err
	}
	return doc.toRecord(), nil
}

func (s *ModerationStore) SaveRecord(ctx context.Context, record domainmoderation.Record) error {
	doc := newRecordDocument(record)
	opts := options.Update().SetUpsert(true)
	_, err := s.records.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

func (s *ModerationStore) AppendAudit(ctx context.Context, entry domainmoderation.AuditEntry) error {
	_, err := s.audit.InsertOne(ctx, auditDocument{
		ID:         entry.ID,
		Actor:      entry.Actor,
		Action:     entry.Action,
		TargetKind: string(entry.Target.Kind),
		TargetID:   entry.Target.ID,
		At:         entry.At.UnixMilli(),
		Detail:     entry.Detail,
	})
	return err
}

func (s *ModerationStore) ListAudit(ctx context.Context, target domainmoderation.Target) ([]domainmoderation.AuditEntry, error) {
	filter := bson.M{"target_kind": string(target.Kind), "target_id": target.ID}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cursor, err := s.audit.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := make([]domainmoderation.AuditEntry, 0)
	for cursor.Next(ctx) {
		var doc auditDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		entries = append(entries, domainmoderation.AuditEntry{
			ID:     doc.ID,
			Actor:  doc.Actor,
			Action: doc.Action,
			Target: domainmoderation.Target{
				Kind: domainmoderation.TargetKind(doc.TargetKind),
				ID:   doc.TargetID,
			},
			At:     timestampToTime(doc.At),
			Detail: doc.Detail,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *ModerationStore) CountsByKind(ctx context.Context, kind domainmoderation.TargetKind) (domainmoderation.StatusCounts, error) {
	counts := domainmoderation.StatusCounts{}
	cursor, err := s.records.Find(ctx, bson.M{"target_kind": string(kind)})
	if err != nil {
		return counts, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			return counts, err
		}
		switch domainmoderation.Status(doc.Status) {
		case domainmoderation.StatusPending:
			counts.Pending++
		case domainmoderation.StatusApproved:
			counts.Approved++
		case domainmoderation.StatusRejected:
			counts.Rejected++
		}
	}
	if err := cursor.Err(); err != nil {
		return counts, err
	}
	return counts, nil
}

type recordDocument struct {
	ID          string `bson:"_id"`
	TargetKind  string `bson:"target_kind"`
	TargetID    string `bson:"target_id"`
	Status      string `bson:"status"`
	Reason      string `bson:"reason,omitempty"`
	SubmittedAt int64  `bson:"submitted_at"`
	DecidedAt   int64  `bson:"decided_at,omitempty"`
	DecidedBy   string `bson:"decided_by,omitempty"`
}

type auditDocument struct {
	ID         string `bson:"_id"`
	Actor      string `bson:"actor"`
	Action     string `bson:"action"`
	TargetKind string `bson:"target_kind"`
	TargetID   string `bson:"target_id"`
	At         int64  `bson:"at"`
	Detail     string `bson:"detail,omitempty"`
}

func newRecordDocument(record domainmoderation.Record) recordDocument {
	doc := recordDocument{
		ID:          recordID(record.Target),
		TargetKind:  string(record.Target.Kind),
		TargetID:    record.Target.ID,
		Status:      string(record.Status),
		Reason:      record.Reason,
		SubmittedAt: record.SubmittedAt.UnixMilli(),
		DecidedBy:   record.DecidedBy,
	}
	if !record.DecidedAt.IsZero() {
		doc.DecidedAt = record.DecidedAt.UnixMilli()
	}
	return doc
}

func (d recordDocument) toRecord() domainmoderation.Record {
	record := domainmoderation.Record{
		Target: domainmoderation.Target{
			Kind: domainmoderation.TargetKind(d.TargetKind),
			ID:   d.TargetID,
		},
		Status:      domainmoderation.Status(d.Status),
		Reason:      d.Reason,
		SubmittedAt: timestampToTime(d.SubmittedAt),
		DecidedBy:   d.DecidedBy,
	}
	if d.DecidedAt > 0 {
		record.DecidedAt = timestampToTime(d.DecidedAt)
	} else {
		record.DecidedAt = time.Time{}
	}
	return record
}

func recordID(target domainmoderation.Target) string {
	return string(target.Kind) + ":" + target.ID
}

var _ domainmoderation.Store = (*ModerationStore)(nil)

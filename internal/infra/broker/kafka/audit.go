package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainmoderation "campusmarket/internal/domain/moderation"
)

// AuditPublisher mirrors moderation audit entries onto the audit topic.
type AuditPublisher struct {
	producer *Producer
	topic    string
}

func NewAuditPublisher(producer *Producer, topic string) *AuditPublisher {
	return &AuditPublisher{producer: producer, topic: topic}
}

func (p *AuditPublisher) PublishAudit(ctx context.Context, entry domainmoderation.AuditEntry) error {
	payload, err := json.Marshal(auditEventPayload{
		ID:         entry.ID,
		Actor:      entry.Actor,
		Action:     entry.Action,
		TargetKind: string(entry.Target.Kind),
		TargetID:   entry.Target.ID,
		At:         entry.At.UTC().Format(time.RFC3339Nano),
		Detail:     entry.Detail,
	})
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	key := string(entry.Target.Kind) + ":" + entry.Target.ID
	return p.producer.Publish(ctx, p.topic, key, payload, map[string]string{"action": entry.Action})
}

type auditEventPayload struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	At         string `json:"at"`
	Detail     string `json:"detail,omitempty"`
}

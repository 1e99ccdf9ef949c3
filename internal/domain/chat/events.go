package chat

import "time"

// EventType names a realtime channel event.
type EventType string

const (
	// EventMessageInserted announces a message row appended on the backend.
	EventMessageInserted EventType = "message.inserted"
	// EventMessagesRead announces a batch of read-flag flips.
	EventMessagesRead EventType = "messages.read"
)

// Event is one push notification from the realtime channel. Delivery is
// at-least-once and possibly duplicated; consumers reconcile by message
// identity, never by arrival order.
type Event struct {
	Type           EventType      `json:"type"`
	ConversationID ConversationID `json:"conversation_id"`
	Message        Message        `json:"message,omitempty"`
	MessageIDs     []MessageID    `json:"message_ids,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

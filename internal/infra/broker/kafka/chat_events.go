package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	domainchat "campusmarket/internal/domain/chat"
)

// EventDispatcher receives decoded chat events, typically a per-viewer sync.
type EventDispatcher interface {
	HandleEvent(ctx context.Context, ev domainchat.Event) error
}

// ChatEventPublisher writes chat events to the chat topic, keyed by
// conversation so ordering per thread is preserved.
type ChatEventPublisher struct {
	producer *Producer
	topic    string
}

func NewChatEventPublisher(producer *Producer, topic string) *ChatEventPublisher {
	return &ChatEventPublisher{producer: producer, topic: topic}
}

func (p *ChatEventPublisher) PublishEvent(ctx context.Context, ev domainchat.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode chat event: %w", err)
	}
	headers := map[string]string{"event_type": string(ev.Type)}
	return p.producer.Publish(ctx, p.topic, string(ev.ConversationID), payload, headers)
}

// ChatEventHandler decodes chat events from the topic and feeds a dispatcher.
type ChatEventHandler struct {
	dispatcher EventDispatcher
}

func NewChatEventHandler(dispatcher EventDispatcher) *ChatEventHandler {
	return &ChatEventHandler{dispatcher: dispatcher}
}

func (h *ChatEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev domainchat.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("decode chat event: %w", err)
	}
	return h.dispatcher.HandleEvent(ctx, ev)
}

var _ MessageHandler = (*ChatEventHandler)(nil)

package ginserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/infra/storage/memory"
)

type capturingEventPublisher struct {
	mu     sync.Mutex
	events []domainchat.Event
}

func (p *capturingEventPublisher) PublishEvent(ctx context.Context, ev domainchat.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturingEventPublisher) captured() []domainchat.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domainchat.Event, len(p.events))
	copy(out, p.events)
	return out
}

func newChatTestHandler(t *testing.T, store *memory.ChatStore) (ChatHandler, *capturingEventPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewSessionHub(store, memory.NewListingRepository(), memory.NewSavedStore(), nil, time.Second, nil)
	publisher := &capturingEventPublisher{}
	return ChatHandler{Hub: hub, Events: publisher}, publisher
}

func chatTestContext(t *testing.T, method, target, body string, conversationID domainchat.ConversationID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = gin.Params{{Key: "id", Value: string(conversationID)}}
	setPrincipal(c, principal{ID: "buyer"})
	return c, w
}

func TestGetConversationPublishesReadReceipt(t *testing.T) {
	store := memory.NewChatStore()
	conv, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.InsertMessage(context.Background(), domainchat.Message{
		ID:             "m1",
		ConversationID: conv.ID,
		SenderID:       "seller",
		Body:           "still available",
		CreatedAt:      time.Now().UTC(),
	}))
	h, publisher := newChatTestHandler(t, store)

	c, w := chatTestContext(t, http.MethodGet, "/api/v1/conversations/"+string(conv.ID), "", conv.ID)
	h.GetConversation(c)
	require.Equal(t, http.StatusOK, w.Code)

	events := publisher.captured()
	require.Len(t, events, 1)
	assert.Equal(t, domainchat.EventMessagesRead, events[0].Type)
	assert.Equal(t, conv.ID, events[0].ConversationID)
	assert.Equal(t, []domainchat.MessageID{"m1"}, events[0].MessageIDs)

	// Reopening an already-read thread announces nothing.
	c, w = chatTestContext(t, http.MethodGet, "/api/v1/conversations/"+string(conv.ID), "", conv.ID)
	h.GetConversation(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, publisher.captured(), 1)
}

func TestSendMessagePublishesInsertEvent(t *testing.T) {
	store := memory.NewChatStore()
	conv, err := store.GetOrCreateConversation(context.Background(), "l1", "buyer", "seller", time.Now())
	require.NoError(t, err)
	h, publisher := newChatTestHandler(t, store)

	c, w := chatTestContext(t, http.MethodPost, "/api/v1/conversations/"+string(conv.ID)+"/messages", `{"body":"hello"}`, conv.ID)
	h.SendMessage(c)
	require.Equal(t, http.StatusCreated, w.Code)

	events := publisher.captured()
	require.Len(t, events, 1)
	assert.Equal(t, domainchat.EventMessageInserted, events[0].Type)
	assert.Equal(t, conv.ID, events[0].ConversationID)
	assert.Equal(t, "hello", events[0].Message.Body)
}

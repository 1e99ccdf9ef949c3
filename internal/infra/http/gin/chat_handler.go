package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	appbindings "campusmarket/internal/app/bindings"
	appchat "campusmarket/internal/app/chat"
	domainchat "campusmarket/internal/domain/chat"
)

// EventPublisher pushes chat events onto the broker so other instances and
// the sender's other sessions converge. Publishing is best-effort.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev domainchat.Event) error
}

// ChatHandler exposes the viewer's synced conversations over HTTP. Every
// response is a snapshot of the per-viewer sync state, so push events that
// arrived between calls are already folded in.
type ChatHandler struct {
	Hub    *SessionHub
	Events EventPublisher
	Logger *slog.Logger
}

// ListConversations refreshes and returns the conversation list with its
// unread badge total.
func (h ChatHandler) ListConversations(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	if err := session.Conversations.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	snapshot := session.Conversations.Snapshot()
	rows := make([]conversationResponse, 0, len(snapshot.Data))
	for _, row := range snapshot.Data {
		rows = append(rows, newConversationResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{
		"phase":        string(snapshot.Phase),
		"items":        rows,
		"unread_total": session.Conversations.GlobalUnread(c.Request.Context()),
	})
}

type openConversationRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	OwnerID   string `json:"owner_id" binding:"required"`
}

// OpenConversation returns the unique thread for a listing and the caller,
// creating it on first contact.
func (h ChatHandler) OpenConversation(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	conv, err := session.Sync.Open(c.Request.Context(), req.ListingID, domainchat.UserID(req.OwnerID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConversationResponse(appchat.ConversationView{
		Conversation: conv,
		Unread:       session.Sync.Unread(conv.ID),
	}))
}

// GetConversation opens a thread, which loads its history and marks it read.
// Newly read messages are announced on the broker so the viewer's other
// sessions drop their badges without polling.
func (h ChatHandler) GetConversation(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	id := domainchat.ConversationID(strings.TrimSpace(c.Param("id")))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	binding := session.Thread(id)
	marked, err := binding.Open(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if len(marked) > 0 && h.Events != nil {
		ev := domainchat.Event{
			Type:           domainchat.EventMessagesRead,
			ConversationID: id,
			MessageIDs:     marked,
			OccurredAt:     time.Now().UTC(),
		}
		if err := h.Events.PublishEvent(c.Request.Context(), ev); err != nil && h.Logger != nil {
			h.Logger.Warn("read receipt publish failed", "conversation_id", id, "error", err)
		}
	}
	c.JSON(http.StatusOK, threadResponse(binding))
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// SendMessage posts through the optimistic path. On failure the snapshot no
// longer contains the provisional message and the client keeps the body.
func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	id := domainchat.ConversationID(strings.TrimSpace(c.Param("id")))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	msg, err := session.Thread(id).Send(c.Request.Context(), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Events != nil {
		ev := domainchat.Event{
			Type:           domainchat.EventMessageInserted,
			ConversationID: id,
			Message:        msg,
			OccurredAt:     msg.CreatedAt,
		}
		if err := h.Events.PublishEvent(c.Request.Context(), ev); err != nil && h.Logger != nil {
			h.Logger.Warn("chat event publish failed", "conversation_id", id, "error", err)
		}
	}
	c.JSON(http.StatusCreated, newMessageResponse(msg))
}

// UnreadBadge returns the navigation badge total without refreshing.
func (h ChatHandler) UnreadBadge(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	c.JSON(http.StatusOK, gin.H{"unread_total": session.Sync.GlobalUnreadHint(c.Request.Context())})
}

type conversationResponse struct {
	ID            string `json:"id"`
	ListingID     string `json:"listing_id"`
	Initiator     string `json:"initiator"`
	Owner         string `json:"owner"`
	Unread        int    `json:"unread"`
	CreatedAt     string `json:"created_at"`
	LastMessageAt string `json:"last_message_at"`
}

func newConversationResponse(row appchat.ConversationView) conversationResponse {
	conv := row.Conversation
	return conversationResponse{
		ID:            string(conv.ID),
		ListingID:     conv.ListingID,
		Initiator:     string(conv.Initiator),
		Owner:         string(conv.Owner),
		Unread:        row.Unread,
		CreatedAt:     conv.CreatedAt.UTC().Format(time.RFC3339),
		LastMessageAt: conv.LastMessageAt.UTC().Format(time.RFC3339),
	}
}

type messageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
	Read           bool   `json:"read"`
}

func newMessageResponse(msg domainchat.Message) messageResponse {
	return messageResponse{
		ID:             string(msg.ID),
		ConversationID: string(msg.ConversationID),
		SenderID:       string(msg.SenderID),
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
		Read:           msg.Read,
	}
}

func threadResponse(binding *appbindings.Conversation) gin.H {
	snapshot := binding.Snapshot()
	messages := make([]messageResponse, 0, len(snapshot.Data.Messages))
	for _, msg := range snapshot.Data.Messages {
		messages = append(messages, newMessageResponse(msg))
	}
	body := gin.H{
		"phase":    string(snapshot.Phase),
		"messages": messages,
		"unread":   snapshot.Data.Unread,
	}
	if snapshot.Data.Conversation.ID != "" {
		body["conversation"] = newConversationResponse(appchat.ConversationView{
			Conversation: snapshot.Data.Conversation,
			Unread:       snapshot.Data.Unread,
		})
	}
	if snapshot.Err != nil {
		body["error"] = snapshot.Err.Error()
	}
	return body
}

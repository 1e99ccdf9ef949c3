package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
)

// SavedHandler exposes the viewer's saved marks.
type SavedHandler struct {
	Hub    *SessionHub
	Logger *slog.Logger
}

// Get read-throughs the saved state for one listing.
func (h SavedHandler) Get(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listing := domainlistings.ListingID(strings.TrimSpace(c.Param("id")))
	if listing == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	saved, err := session.Saved.Load(c.Request.Context(), listing)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing_id": string(listing), "saved": saved})
}

// Toggle flips the saved mark. The response carries the settled state, which
// on persist failure is the reverted one.
func (h SavedHandler) Toggle(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listing := domainlistings.ListingID(strings.TrimSpace(c.Param("id")))
	if listing == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	saved, err := session.Saved.Toggle(c.Request.Context(), listing)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"listing_id": string(listing),
			"saved":      saved,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing_id": string(listing), "saved": saved})
}

// List returns every mark the viewer holds, newest first.
func (h SavedHandler) List(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	marks, err := session.Saved.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]gin.H, 0, len(marks))
	for _, mark := range marks {
		items = append(items, gin.H{
			"listing_id": string(mark.Listing),
			"created_at": mark.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

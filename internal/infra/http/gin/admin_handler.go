package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	appmoderation "campusmarket/internal/app/moderation"
	domainmoderation "campusmarket/internal/domain/moderation"
)

// AdminHandler exposes the moderation workflow to reviewers.
type AdminHandler struct {
	Workflow *appmoderation.Workflow
	Logger   *slog.Logger
}

// Submit (re)enters a target into review.
func (h AdminHandler) Submit(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	target, ok := targetFromPath(c)
	if !ok {
		return
	}
	if err := h.Workflow.Submit(c.Request.Context(), target, principal.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domainmoderation.StatusPending)})
}

// Approve decides a pending target positively.
func (h AdminHandler) Approve(c *gin.Context) {
	principal, ok := requireRole(c, "admin")
	if !ok {
		return
	}
	target, ok := targetFromPath(c)
	if !ok {
		return
	}
	if err := h.Workflow.Approve(c.Request.Context(), target, principal.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domainmoderation.StatusApproved)})
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject decides a pending target negatively; the reason is mandatory.
func (h AdminHandler) Reject(c *gin.Context) {
	principal, ok := requireRole(c, "admin")
	if !ok {
		return
	}
	target, ok := targetFromPath(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	if err := h.Workflow.Reject(c.Request.Context(), target, principal.ID, strings.TrimSpace(req.Reason)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domainmoderation.StatusRejected)})
}

// Counts returns the dashboard aggregates for one target kind.
func (h AdminHandler) Counts(c *gin.Context) {
	if _, ok := requireRole(c, "admin"); !ok {
		return
	}
	kind := domainmoderation.TargetKind(strings.TrimSpace(c.Param("kind")))
	counts, err := h.Workflow.Counts(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":  counts.Pending,
		"approved": counts.Approved,
		"rejected": counts.Rejected,
	})
}

// Audit returns the append-only trail for one target.
func (h AdminHandler) Audit(c *gin.Context) {
	if _, ok := requireRole(c, "admin"); !ok {
		return
	}
	target, ok := targetFromPath(c)
	if !ok {
		return
	}
	entries, err := h.Workflow.Audit(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, gin.H{
			"id":     entry.ID,
			"actor":  entry.Actor,
			"action": entry.Action,
			"at":     entry.At.UTC().Format(time.RFC3339),
			"detail": entry.Detail,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func targetFromPath(c *gin.Context) (domainmoderation.Target, bool) {
	target := domainmoderation.Target{
		Kind: domainmoderation.TargetKind(strings.TrimSpace(c.Param("kind"))),
		ID:   strings.TrimSpace(c.Param("id")),
	}
	if !target.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown moderation target"})
		return domainmoderation.Target{}, false
	}
	return target, true
}

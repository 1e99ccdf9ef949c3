package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
)

// FeedHandler exposes the filtered listing feed.
type FeedHandler struct {
	Hub    *SessionHub
	Logger *slog.Logger
}

// Catalog applies the request's filters and returns the resulting snapshot.
// A request that lost to a newer filter change returns the newer snapshot.
func (h FeedHandler) Catalog(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	filters := feedFiltersFromQuery(c)

	if err := session.Feed.Apply(c.Request.Context(), filters); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedResponse(session))
}

// More extends the current page. Filters stay as last applied.
func (h FeedHandler) More(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	session := h.Hub.Session(domainchat.UserID(principal.ID))
	if err := session.Feed.LoadMore(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedResponse(session))
}

func feedFiltersFromQuery(c *gin.Context) domainlistings.SearchParams {
	return domainlistings.SearchParams{
		Query:     strings.TrimSpace(c.Query("q")),
		Category:  domainlistings.Category(strings.TrimSpace(c.Query("category"))),
		Condition: domainlistings.Condition(strings.TrimSpace(c.Query("condition"))),
		Seller:    domainlistings.SellerID(strings.TrimSpace(c.Query("seller"))),
		PriceMin:  parsePositiveInt64(c.Query("price_min")),
		PriceMax:  parsePositiveInt64(c.Query("price_max")),
		Sort:      domainlistings.FeedSort(strings.TrimSpace(c.Query("sort"))),
		Limit:     parsePositiveIntStrict(c.Query("limit"), 0),
	}
}

func feedResponse(session *Session) gin.H {
	snapshot := session.Feed.Snapshot()
	items := make([]listingResponse, 0, len(snapshot.Data.Items))
	for _, item := range snapshot.Data.Items {
		items = append(items, newListingResponse(item))
	}
	body := gin.H{
		"phase":    string(snapshot.Phase),
		"items":    items,
		"total":    snapshot.Data.Total,
		"has_more": snapshot.Data.HasMore,
	}
	if snapshot.Err != nil {
		body["error"] = snapshot.Err.Error()
	}
	return body
}

package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appmoderation "campusmarket/internal/app/moderation"
	domainlistings "campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
	"campusmarket/internal/infra/storage/s3"
)

// ListingHandler covers seller-side listing management: creation, photo
// upload, and submitting for review.
type ListingHandler struct {
	Repo     domainlistings.Repository
	Workflow *appmoderation.Workflow
	Uploader s3.Uploader
	Logger   *slog.Logger
}

type createListingRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	PriceCents  int64  `json:"price_cents" binding:"required"`
}

// Create stores a new listing in pending state and enters it into review.
func (h ListingHandler) Create(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:          domainlistings.ListingID(uuid.NewString()),
		Seller:      domainlistings.SellerID(principal.ID),
		Title:       req.Title,
		Description: req.Description,
		Category:    domainlistings.Category(req.Category),
		Condition:   domainlistings.Condition(req.Condition),
		PriceCents:  req.PriceCents,
		Now:         time.Now(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Repo.Save(c.Request.Context(), listing); err != nil {
		respondError(c, err)
		return
	}
	if h.Workflow != nil {
		target := domainmoderation.Target{Kind: domainmoderation.TargetListing, ID: string(listing.ID)}
		if err := h.Workflow.Submit(c.Request.Context(), target, principal.ID); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, newListingResponse(listing))
}

// Get returns one listing. Sellers see their own regardless of review state.
func (h ListingHandler) Get(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listing, err := h.Repo.ByID(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	visible := listing.Status == domainmoderation.StatusApproved ||
		string(listing.Seller) == principal.ID ||
		principal.HasRole("admin")
	if !visible {
		c.JSON(http.StatusNotFound, gin.H{"error": domainlistings.ErrListingNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, newListingResponse(listing))
}

// UploadPhoto stores one photo and appends its public URL to the listing.
func (h ListingHandler) UploadPhoto(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listing, err := h.Repo.ByID(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	if string(listing.Seller) != principal.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the listing seller"})
		return
	}
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage unavailable"})
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer reader.Close()

	url, err := h.Uploader.UploadListingPhoto(c.Request.Context(), string(listing.ID), file.Filename, reader, file.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	listing.PhotoURLs = append(listing.PhotoURLs, url)
	listing.Touch(time.Now())
	if err := h.Repo.Save(c.Request.Context(), listing); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "photo_urls": listing.PhotoURLs})
}

type listingResponse struct {
	ID          string   `json:"id"`
	Seller      string   `json:"seller_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	PriceCents  int64    `json:"price_cents"`
	PhotoURLs   []string `json:"photo_urls,omitempty"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func newListingResponse(l *domainlistings.Listing) listingResponse {
	return listingResponse{
		ID:          string(l.ID),
		Seller:      string(l.Seller),
		Title:       l.Title,
		Description: l.Description,
		Category:    string(l.Category),
		Condition:   string(l.Condition),
		PriceCents:  l.PriceCents,
		PhotoURLs:   l.PhotoURLs,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

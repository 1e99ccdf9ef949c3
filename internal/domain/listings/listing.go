package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusmarket/internal/domain/moderation"
)

var (
	ErrListingNotFound = errors.New("listings: listing not found")
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrPriceNegative   = errors.New("listings: price must be non-negative")
	ErrBadCategory     = errors.New("listings: unknown category")
	ErrBadCondition    = errors.New("listings: unknown condition")
)

type ListingID string
type SellerID string

// Category buckets campus listings for filtering.
type Category string

const (
	CategoryTextbooks   Category = "textbooks"
	CategoryElectronics Category = "electronics"
	CategoryFurniture   Category = "furniture"
	CategoryClothing    Category = "clothing"
	CategoryTickets     Category = "tickets"
	CategoryServices    Category = "services"
	CategoryOther       Category = "other"
)

// Condition grades the offered item.
type Condition string

const (
	ConditionNew      Condition = "new"
	ConditionLikeNew  Condition = "like_new"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionForParts Condition = "for_parts"
)

// Listing is one item offered on the campus marketplace. Visibility is
// governed by the moderation status carried on the record.
type Listing struct {
	ID          ListingID
	Seller      SellerID
	Title       string
	Description string
	Category    Category
	Condition   Condition
	PriceCents  int64
	PhotoURLs   []string
	Status      moderation.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository is the persistence contract for listings.
type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}

// CreateListingParams collects the values needed to publish a listing.
type CreateListingParams struct {
	ID          ListingID
	Seller      SellerID
	Title       string
	Description string
	Category    Category
	Condition   Condition
	PriceCents  int64
	PhotoURLs   []string
	Now         time.Time
}

// NewListing validates params and builds a listing.
func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Seller)) == "" {
		return nil, errors.New("listings: seller is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.PriceCents < 0 {
		return nil, ErrPriceNegative
	}
	category := normalizeCategory(params.Category)
	if category == "" {
		return nil, ErrBadCategory
	}
	condition := normalizeCondition(params.Condition)
	if condition == "" {
		return nil, ErrBadCondition
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Listing{
		ID:          params.ID,
		Seller:      params.Seller,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Category:    category,
		Condition:   condition,
		PriceCents:  params.PriceCents,
		PhotoURLs:   append([]string(nil), params.PhotoURLs...),
		Status:      moderation.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Touch advances the update timestamp.
func (l *Listing) Touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.UpdatedAt = now.UTC()
}

func normalizeCategory(value Category) Category {
	normalized := Category(strings.TrimSpace(strings.ToLower(string(value))))
	switch normalized {
	case CategoryTextbooks, CategoryElectronics, CategoryFurniture,
		CategoryClothing, CategoryTickets, CategoryServices, CategoryOther:
		return normalized
	case "":
		return CategoryOther
	}
	return ""
}

func normalizeCondition(value Condition) Condition {
	normalized := Condition(strings.TrimSpace(strings.ToLower(string(value))))
	switch normalized {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionForParts:
		return normalized
	case "":
		return ConditionGood
	}
	return ""
}

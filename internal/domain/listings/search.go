package listings

import "strings"

// FeedSort defines a supported feed ordering.
type FeedSort string

const (
	SortByNewest    FeedSort = "newest"
	SortByPriceAsc  FeedSort = "price_asc"
	SortByPriceDesc FeedSort = "price_desc"

	defaultFeedLimit = 20
	maxFeedLimit     = 50
)

// SearchParams describe feed filters and paging options.
type SearchParams struct {
	Query        string
	Category     Category
	Condition    Condition
	Seller       SellerID
	PriceMin     int64
	PriceMax     int64
	Sort         FeedSort
	Limit        int
	Offset       int
	OnlyApproved bool
}

// Normalized returns a sanitized copy of params.
func (p SearchParams) Normalized() SearchParams {
	normalized := p
	normalized.Query = strings.TrimSpace(strings.ToLower(normalized.Query))
	normalized.Category = Category(strings.TrimSpace(strings.ToLower(string(normalized.Category))))
	normalized.Condition = Condition(strings.TrimSpace(strings.ToLower(string(normalized.Condition))))
	if normalized.PriceMin < 0 {
		normalized.PriceMin = 0
	}
	if normalized.PriceMax > 0 && normalized.PriceMax < normalized.PriceMin {
		normalized.PriceMax = 0
	}
	if normalized.Limit <= 0 {
		normalized.Limit = defaultFeedLimit
	}
	if normalized.Limit > maxFeedLimit {
		normalized.Limit = maxFeedLimit
	}
	if normalized.Offset < 0 {
		normalized.Offset = 0
	}
	switch normalized.Sort {
	case SortByNewest, SortByPriceAsc, SortByPriceDesc:
	default:
		normalized.Sort = SortByNewest
	}
	return normalized
}

// SearchResult wraps feed hits with meta.
type SearchResult struct {
	Items []*Listing
	Total int
}

// HasMore reports whether a further page exists past the given offset.
func (r SearchResult) HasMore(offset, returned int) bool {
	return offset+returned < r.Total
}

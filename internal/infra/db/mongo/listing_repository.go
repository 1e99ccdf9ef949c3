package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toListing(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, update, opts)
	return err
}

func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	opts := params.Normalized()
	filter := bson.M{}
	if opts.OnlyApproved {
		filter["status"] = string(domainmoderation.StatusApproved)
	}
	if opts.Seller != "" {
		filter["seller_id"] = string(opts.Seller)
	}
	if opts.Category != "" {
		filter["category"] = string(opts.Category)
	}
	if opts.Condition != "" {
		filter["condition"] = string(opts.Condition)
	}
	price := bson.M{}
	if opts.PriceMin > 0 {
		price["$gte"] = opts.PriceMin
	}
	if opts.PriceMax > 0 {
		price["$lte"] = opts.PriceMax
	}
	if len(price) > 0 {
		filter["price_cents"] = price
	}
	if opts.Query != "" {
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": opts.Query, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": opts.Query, "$options": "i"}},
		}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}

	findOpts := options.Find().
		SetSort(sortFor(opts.Sort)).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))
	cursor, err := r.col.Find(ctx, filter, findOpts)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	defer cursor.Close(ctx)

	items := make([]*domainlistings.Listing, 0, opts.Limit)
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return domainlistings.SearchResult{}, err
		}
		items = append(items, doc.toListing())
	}
	if err := cursor.Err(); err != nil {
		return domainlistings.SearchResult{}, err
	}
	return domainlistings.SearchResult{Items: items, Total: int(total)}, nil
}

func sortFor(sort domainlistings.FeedSort) bson.D {
	switch sort {
	case domainlistings.SortByPriceAsc:
		return bson.D{{Key: "price_cents", Value: 1}, {Key: "created_at", Value: -1}}
	case domainlistings.SortByPriceDesc:
		return bson.D{{Key: "price_cents", Value: -1}, {Key: "created_at", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
}

type listingDocument struct {
	ID          string   `bson:"_id"`
	SellerID    string   `bson:"seller_id"`
	Title       string   `bson:"title"`
	Description string   `bson:"description"`
	Category    string   `bson:"category"`
	Condition   string   `bson:"condition"`
	PriceCents  int64    `bson:"price_cents"`
	PhotoURLs   []string `bson:"photo_urls"`
	Status      string   `bson:"status"`
	CreatedAt   int64    `bson:"created_at"`
	UpdatedAt   int64    `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		SellerID:    string(l.Seller),
		Title:       l.Title,
		Description: l.Description,
		Category:    string(l.Category),
		Condition:   string(l.Condition),
		PriceCents:  l.PriceCents,
		PhotoURLs:   append([]string(nil), l.PhotoURLs...),
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt.UnixMilli(),
		UpdatedAt:   l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toListing() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Seller:      domainlistings.SellerID(d.SellerID),
		Title:       d.Title,
		Description: d.Description,
		Category:    domainlistings.Category(d.Category),
		Condition:   domainlistings.Condition(d.Condition),
		PriceCents:  d.PriceCents,
		PhotoURLs:   append([]string(nil), d.PhotoURLs...),
		Status:      domainmoderation.Status(d.Status),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainlistings.Repository = (*ListingRepository)(nil)

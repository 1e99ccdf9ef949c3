package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "campusmarket/internal/domain/listings"
)

type SavedStore struct {
	col *mongo.Collection
}

func NewSavedStore(db *mongo.Database) *SavedStore {
	return &SavedStore{col: db.Collection("saved_listings")}
}

func (s *SavedStore) Put(ctx context.Context, mark domainlistings.SavedMark) error {
	doc := savedMarkDocument{
		ID:        savedMarkID(mark.Viewer, mark.Listing),
		ViewerID:  string(mark.Viewer),
		ListingID: string(mark.Listing),
		CreatedAt: mark.CreatedAt.UnixMilli(),
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

func (s *SavedStore) Delete(ctx context.Context, viewer domainlistings.ViewerID, listing domainlistings.ListingID) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": savedMarkID(viewer, listing)})
	return err
}

func (s *SavedStore) IsSaved(ctx context.Context, viewer domainlistings.ViewerID, listing domainlistings.ListingID) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{"_id": savedMarkID(viewer, listing)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SavedStore) ListByViewer(ctx context.Context, viewer domainlistings.ViewerID) ([]domainlistings.SavedMark, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{"viewer_id": string(viewer)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	marks := make([]domainlistings.SavedMark, 0)
	for cursor.Next(ctx) {
		var doc savedMarkDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		marks = append(marks, domainlistings.SavedMark{
			Viewer:    domainlistings.ViewerID(doc.ViewerID),
			Listing:   domainlistings.ListingID(doc.ListingID),
			CreatedAt: timestampToTime(doc.CreatedAt),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return marks, nil
}

type savedMarkDocument struct {
	ID        string `bson:"_id"`
	ViewerID  string `bson:"viewer_id"`
	ListingID string `bson:"listing_id"`
	CreatedAt int64  `bson:"created_at"`
}

func savedMarkID(viewer domainlistings.ViewerID, listing domainlistings.ListingID) string {
	return string(viewer) + ":" + string(listing)
}

var _ domainlistings.SavedStore = (*SavedStore)(nil)

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type EntryRepository struct {
	collection *mongo.Collection
}

func NewEntryRepository(db *mongo.Database) *EntryRepository {
	return &EntryRepository{
		collection: db.Collection("Entry"),
	}
}

func (r *EntryRepository) Create(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	if entry.ID.IsZero() {
		entry.ID = bson.NewObjectID()
	}
	if entry.Payload == nil {
		entry.Payload = models.Payload{}
	}

	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}
	return entry, nil
}

func (r *EntryRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Entry, error) {
	var entry models.Entry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *EntryRepository) UpdatePayload(ctx context.Context, id bson.ObjectID, payload models.Payload) error {
	update := bson.M{"$set": bson.M{
		"payload":   payload,
		"updatedAt": time.Now(),
	}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update entry payload: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *EntryRepository) FindByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.Entry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"templateId": templateID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*models.Entry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *EntryRepository) FindByWriter(ctx context.Context, writerID bson.ObjectID) ([]*models.Entry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"writerId": writerID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*models.Entry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FindIDsByTemplate returns only entry ids, for the supervisor backfill
// sweep. The sweep touches every entry under a template, so the payload
// is deliberately left out of the projection.
func (r *EntryRepository) FindIDsByTemplate(ctx context.Context, templateID bson.ObjectID) ([]bson.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"templateId": templateID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, len(results))
	for i, result := range results {
		ids[i] = result.ID
	}
	return ids, nil
}

func (r *EntryRepository) CountByTemplate(ctx context.Context, templateID bson.ObjectID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"templateId": templateID})
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (r *EntryRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, models.GetEntryIndexes())
	if err != nil {
		return fmt.Errorf("failed to create entry indexes: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// VerificationRecordRepository is the durable (entry, supervisor) ->
// approval state mapping. All writes go through atomic upserts keyed by
// the unique (entryId, supervisorId) index, so two concurrent backfills
// for the same supervisor can never produce duplicate records.
type VerificationRecordRepository struct {
	collection *mongo.Collection
}

func NewVerificationRecordRepository(db *mongo.Database) *VerificationRecordRepository {
	return &VerificationRecordRepository{
		collection: db.Collection("VerificationRecord"),
	}
}

// EnsurePending creates a pending record for (entry, supervisor) if none
// exists. A record that is already there, pending or decided, is left
// untouched; the $setOnInsert update writes nothing on match. Returns
// whether a new record was created.
func (r *VerificationRecordRepository) EnsurePending(ctx context.Context, entryID, supervisorID bson.ObjectID) (bool, error) {
	filter := bson.M{"entryId": entryID, "supervisorId": supervisorID}

	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":       bson.NewObjectID(),
			"approved":  false,
			"notes":     "",
			"createdAt": now,
			"updatedAt": now,
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to ensure pending record: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// Decide records one supervisor's approve/reject decision, overwriting
// any prior decision in place. The upsert also covers a record that was
// never backfilled.
func (r *VerificationRecordRepository) Decide(ctx context.Context, entryID, supervisorID bson.ObjectID, approved bool, notes string, decidedAt time.Time) error {
	filter := bson.M{"entryId": entryID, "supervisorId": supervisorID}

	update := bson.M{
		"$set": bson.M{
			"approved":  approved,
			"decidedAt": decidedAt,
			"notes":     notes,
			"updatedAt": decidedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       bson.NewObjectID(),
			"createdAt": decidedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// Reset returns a decided record to pending: approved flips to false,
// the decision timestamp is cleared, and the audit note replaces the
// notes field.
func (r *VerificationRecordRepository) Reset(ctx context.Context, id bson.ObjectID, note string) error {
	update := bson.M{
		"$set": bson.M{
			"approved":  false,
			"notes":     note,
			"updatedAt": time.Now(),
		},
		"$unset": bson.M{"decidedAt": ""},
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to reset record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *VerificationRecordRepository) Delete(ctx context.Context, entryID, supervisorID bson.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"entryId": entryID, "supervisorId": supervisorID})
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteByEntry removes all records for an entry. Only used when the
// entry itself is deleted.
func (r *VerificationRecordRepository) DeleteByEntry(ctx context.Context, entryID bson.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"entryId": entryID})
	if err != nil {
		return fmt.Errorf("failed to delete entry records: %w", err)
	}
	return nil
}

func (r *VerificationRecordRepository) FindByEntry(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"entryId": entryID},
		options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*models.VerificationRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindDecidedByEntry returns the records on which a supervisor has ever
// rendered a decision (approve or reject). These are the records a data
// change must reset.
func (r *VerificationRecordRepository) FindDecidedByEntry(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error) {
	filter := bson.M{"entryId": entryID, "decidedAt": bson.M{"$ne": nil}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*models.VerificationRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *VerificationRecordRepository) CountApproved(ctx context.Context, entryID bson.ObjectID) (int, error) {
	return r.count(ctx, bson.M{
		"entryId":   entryID,
		"approved":  true,
		"decidedAt": bson.M{"$ne": nil},
	})
}

func (r *VerificationRecordRepository) CountRejected(ctx context.Context, entryID bson.ObjectID) (int, error) {
	return r.count(ctx, bson.M{
		"entryId":   entryID,
		"approved":  false,
		"decidedAt": bson.M{"$ne": nil},
	})
}

// CountPending counts records that exist but carry no decision yet.
func (r *VerificationRecordRepository) CountPending(ctx context.Context, entryID bson.ObjectID) (int, error) {
	return r.count(ctx, bson.M{
		"entryId":   entryID,
		"decidedAt": bson.M{"$eq": nil},
	})
}

func (r *VerificationRecordRepository) count(ctx context.Context, filter bson.M) (int, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count verification records: %w", err)
	}
	return int(count), nil
}

func (r *VerificationRecordRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, models.GetVerificationRecordIndexes())
	if err != nil {
		return fmt.Errorf("failed to create verification record indexes: %w", err)
	}
	return nil
}

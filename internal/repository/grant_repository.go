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

type AccessGrantRepository struct {
	collection *mongo.Collection
}

func NewAccessGrantRepository(db *mongo.Database) *AccessGrantRepository {
	return &AccessGrantRepository{
		collection: db.Collection("AccessGrant"),
	}
}

// Upsert grants a role to a user on a template. A user holds at most one
// role per template, so granting again replaces the prior role. The
// previous grant (nil if this is a new grant) is returned so callers can
// tell whether the role value actually changed.
func (r *AccessGrantRepository) Upsert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	filter := bson.M{
		"userId":     grant.UserID,
		"templateId": grant.TemplateID,
	}

	var previous *models.AccessGrant
	var existing models.AccessGrant
	err := r.collection.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		previous = &existing
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error checking existing grant: %w", err)
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"roleId":    grant.RoleID,
			"grantedBy": grant.GrantedBy,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       bson.NewObjectID(),
			"createdAt": now,
		},
	}

	_, err = r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert access grant: %w", err)
	}
	return previous, nil
}

func (r *AccessGrantRepository) FindByUserAndTemplate(ctx context.Context, userID, templateID bson.ObjectID) (*models.AccessGrant, error) {
	filter := bson.M{"userId": userID, "templateId": templateID}

	var grant models.AccessGrant
	err := r.collection.FindOne(ctx, filter).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	return &grant, nil
}

func (r *AccessGrantRepository) FindByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.AccessGrant, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"templateId": templateID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []*models.AccessGrant
	if err = cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// FindUserIDsByTemplateAndRole returns the distinct users holding the
// given role on a template, in grant-creation order.
func (r *AccessGrantRepository) FindUserIDsByTemplateAndRole(ctx context.Context, templateID, roleID bson.ObjectID) ([]bson.ObjectID, error) {
	filter := bson.M{"templateId": templateID, "roleId": roleID}
	opts := options.Find().
		SetProjection(bson.M{"userId": 1, "_id": 0}).
		SetSort(bson.M{"createdAt": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		UserID bson.ObjectID `bson:"userId"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	seen := make(map[bson.ObjectID]bool, len(results))
	userIDs := make([]bson.ObjectID, 0, len(results))
	for _, result := range results {
		if seen[result.UserID] {
			continue
		}
		seen[result.UserID] = true
		userIDs = append(userIDs, result.UserID)
	}
	return userIDs, nil
}

func (r *AccessGrantRepository) Delete(ctx context.Context, userID, templateID bson.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"userId": userID, "templateId": templateID})
	if err != nil {
		return fmt.Errorf("failed to delete access grant: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (r *AccessGrantRepository) DeleteByTemplate(ctx context.Context, templateID bson.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"templateId": templateID})
	if err != nil {
		return fmt.Errorf("failed to delete template grants: %w", err)
	}
	return nil
}

func (r *AccessGrantRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, models.GetAccessGrantIndexes())
	if err != nil {
		return fmt.Errorf("failed to create access grant indexes: %w", err)
	}
	return nil
}

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

type TemplateRepository struct {
	collection *mongo.Collection
}

func NewTemplateRepository(db *mongo.Database) *TemplateRepository {
	return &TemplateRepository{
		collection: db.Collection("Template"),
	}
}

func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) (*models.Template, error) {
	if template.ID.IsZero() {
		template.ID = bson.NewObjectID()
	}

	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to insert template: %w", err)
	}
	return template, nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Template, error) {
	var template models.Template
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &template, nil
}

func (r *TemplateRepository) Update(ctx context.Context, template *models.Template) error {
	template.UpdatedAt = time.Now()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": template.ID}, bson.M{"$set": template})
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepository) FindByInstitution(ctx context.Context, institutionID bson.ObjectID) ([]*models.Template, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"institutionId": institutionID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*models.Template
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

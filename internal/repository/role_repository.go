package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type RoleRepository struct {
	collection *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{
		collection: db.Collection("Role"),
	}
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	existing, err := r.FindByName(ctx, role.Name)
	if err != nil && !errors.Is(err, ErrRoleNotFound) {
		return nil, fmt.Errorf("error checking existing role: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("role with name '%s' already exists", role.Name)
	}

	if role.ID.IsZero() {
		role.ID = bson.NewObjectID()
	}

	now := time.Now()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to insert role: %w", err)
	}

	return role, nil
}

func (r *RoleRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Role, error) {
	var role models.Role
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&role)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// FindByName matches the role name case-insensitively. Role labels come
// from configuration, so "supervisor" and "Supervisor" must resolve to
// the same role.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	filter := bson.M{"name": bson.M{
		"$regex":   "^" + regexp.QuoteMeta(name) + "$",
		"$options": "i",
	}}

	var role models.Role
	err := r.collection.FindOne(ctx, filter).Decode(&role)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// EnsureSystemRoles seeds the closed role set at startup. Existing roles
// are left untouched.
func (r *RoleRepository) EnsureSystemRoles(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := r.FindByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return fmt.Errorf("error checking role %s: %w", name, err)
		}

		if _, err := r.Create(ctx, &models.Role{Name: name, IsSystem: true}); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
	}
	return nil
}

func (r *RoleRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, models.GetRoleIndexes())
	if err != nil {
		return fmt.Errorf("failed to create role indexes: %w", err)
	}
	return nil
}

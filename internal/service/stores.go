package service

import (
	"context"
	"time"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store interfaces consumed by the services. The Mongo repositories in
// internal/repository satisfy them; tests substitute in-memory fakes.

type TemplateStore interface {
	Create(ctx context.Context, template *models.Template) (*models.Template, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Template, error)
	Update(ctx context.Context, template *models.Template) error
	Delete(ctx context.Context, id bson.ObjectID) error
	FindByInstitution(ctx context.Context, institutionID bson.ObjectID) ([]*models.Template, error)
}

type EntryStore interface {
	Create(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Entry, error)
	UpdatePayload(ctx context.Context, id bson.ObjectID, payload models.Payload) error
	Delete(ctx context.Context, id bson.ObjectID) error
	FindByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.Entry, error)
	FindByWriter(ctx context.Context, writerID bson.ObjectID) ([]*models.Entry, error)
	FindIDsByTemplate(ctx context.Context, templateID bson.ObjectID) ([]bson.ObjectID, error)
	CountByTemplate(ctx context.Context, templateID bson.ObjectID) (int64, error)
}

type GrantStore interface {
	Upsert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error)
	FindByUserAndTemplate(ctx context.Context, userID, templateID bson.ObjectID) (*models.AccessGrant, error)
	FindByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.AccessGrant, error)
	FindUserIDsByTemplateAndRole(ctx context.Context, templateID, roleID bson.ObjectID) ([]bson.ObjectID, error)
	Delete(ctx context.Context, userID, templateID bson.ObjectID) error
	DeleteByTemplate(ctx context.Context, templateID bson.ObjectID) error
}

type RoleStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
}

type RecordStore interface {
	EnsurePending(ctx context.Context, entryID, supervisorID bson.ObjectID) (bool, error)
	Decide(ctx context.Context, entryID, supervisorID bson.ObjectID, approved bool, notes string, decidedAt time.Time) error
	Reset(ctx context.Context, id bson.ObjectID, note string) error
	Delete(ctx context.Context, entryID, supervisorID bson.ObjectID) error
	DeleteByEntry(ctx context.Context, entryID bson.ObjectID) error
	FindByEntry(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error)
	FindDecidedByEntry(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error)
	CountApproved(ctx context.Context, entryID bson.ObjectID) (int, error)
	CountRejected(ctx context.Context, entryID bson.ObjectID) (int, error)
	CountPending(ctx context.Context, entryID bson.ObjectID) (int, error)
}

type TemplateCache interface {
	Get(ctx context.Context, id string) (*models.Template, error)
	Set(ctx context.Context, template *models.Template) error
	Invalidate(ctx context.Context, id string) error
}

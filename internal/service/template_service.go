package service

import (
	"context"
	"fmt"
	"log"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TemplateService owns logbook template CRUD. Creation grants the
// creating user the Owner role as an explicit post-creation step.
type TemplateService struct {
	templates     TemplateStore
	grants        GrantStore
	roles         RoleStore
	cache         TemplateCache
	ownerRoleName string
}

func NewTemplateService(templates TemplateStore, grants GrantStore, roles RoleStore, cache TemplateCache, ownerRoleName string) *TemplateService {
	return &TemplateService{
		templates:     templates,
		grants:        grants,
		roles:         roles,
		cache:         cache,
		ownerRoleName: ownerRoleName,
	}
}

// Create persists the template and grants its creator the Owner role. If
// the owner grant cannot be written the template is removed again, so a
// template never exists without an owner.
func (s *TemplateService) Create(ctx context.Context, template *models.Template, creatorID bson.ObjectID) (*models.Template, error) {
	ownerRole, err := s.roles.FindByName(ctx, s.ownerRoleName)
	if err != nil {
		return nil, fmt.Errorf("owner role %q not found: %w", s.ownerRoleName, err)
	}

	template.CreatedBy = creatorID
	created, err := s.templates.Create(ctx, template)
	if err != nil {
		return nil, err
	}

	_, err = s.grants.Upsert(ctx, &models.AccessGrant{
		UserID:     creatorID,
		TemplateID: created.ID,
		RoleID:     ownerRole.ID,
		GrantedBy:  creatorID,
	})
	if err != nil {
		if delErr := s.templates.Delete(ctx, created.ID); delErr != nil {
			log.Printf("Failed to remove template %s after owner grant failure: %v", created.ID.Hex(), delErr)
		}
		return nil, fmt.Errorf("failed to grant owner role on new template: %w", err)
	}

	return created, nil
}

// Get reads through the Redis cache. Supervisor sets are never cached;
// only the template document itself is.
func (s *TemplateService) Get(ctx context.Context, id bson.ObjectID) (*models.Template, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id.Hex())
		if err != nil {
			log.Printf("Template cache read failed for %s: %v", id.Hex(), err)
		} else if cached != nil {
			return cached, nil
		}
	}

	template, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, template); err != nil {
			log.Printf("Template cache write failed for %s: %v", id.Hex(), err)
		}
	}
	return template, nil
}

func (s *TemplateService) Update(ctx context.Context, template *models.Template) error {
	if err := s.templates.Update(ctx, template); err != nil {
		return err
	}
	s.invalidate(ctx, template.ID)
	return nil
}

// Delete removes the template and its grants. Entries and verification
// records under it are the storage layer's cascade concern and are left
// to operational cleanup.
func (s *TemplateService) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.grants.DeleteByTemplate(ctx, id); err != nil {
		log.Printf("Failed to delete grants for template %s: %v", id.Hex(), err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *TemplateService) ListByInstitution(ctx context.Context, institutionID bson.ObjectID) ([]*models.Template, error) {
	return s.templates.FindByInstitution(ctx, institutionID)
}

func (s *TemplateService) invalidate(ctx context.Context, id bson.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id.Hex()); err != nil {
		log.Printf("Template cache invalidation failed for %s: %v", id.Hex(), err)
	}
}

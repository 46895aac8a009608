package service

import (
	"context"
	"errors"
	"fmt"

	"logbook-service/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// SupervisorResolver answers "who must approve entries on this template".
// It is the single source of truth for the approval denominator and is
// re-evaluated on every call: supervisor membership can change between an
// entry's creation and its verification, so the result must never be
// cached across a request boundary.
type SupervisorResolver struct {
	roles    RoleStore
	grants   GrantStore
	roleName string
}

func NewSupervisorResolver(roles RoleStore, grants GrantStore, roleName string) *SupervisorResolver {
	return &SupervisorResolver{
		roles:    roles,
		grants:   grants,
		roleName: roleName,
	}
}

// Resolve returns the distinct set of users currently holding the
// supervisor role on the template, in grant order. A missing role or an
// absence of grants yields an empty set, not an error: a template with no
// supervisors simply requires no verification.
func (r *SupervisorResolver) Resolve(ctx context.Context, templateID bson.ObjectID) ([]bson.ObjectID, error) {
	role, err := r.roles.FindByName(ctx, r.roleName)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return []bson.ObjectID{}, nil
		}
		return nil, fmt.Errorf("failed to resolve supervisor role: %w", err)
	}

	userIDs, err := r.grants.FindUserIDsByTemplateAndRole(ctx, templateID, role.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve supervisors for template %s: %w", templateID.Hex(), err)
	}
	return userIDs, nil
}

// IsSupervisor reports whether the user currently holds the supervisor
// role on the template.
func (r *SupervisorResolver) IsSupervisor(ctx context.Context, templateID, userID bson.ObjectID) (bool, error) {
	supervisors, err := r.Resolve(ctx, templateID)
	if err != nil {
		return false, err
	}
	for _, id := range supervisors {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

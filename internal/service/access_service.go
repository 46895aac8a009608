package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"logbook-service/internal/events"
	"logbook-service/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Counter for supervisor backfills. Lives here rather than in handlers
// because backfills are also triggered by consumed grant events.
var supervisorBackfills = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "logbook_supervisor_backfills_total",
		Help: "Total number of verification records backfilled for newly added supervisors",
	},
)

// AccessService owns per-template role grants and the grant watcher: when
// a user gains the supervisor role on a template that already has
// entries, every existing entry gets a pending verification record for
// that supervisor.
type AccessService struct {
	grants             GrantStore
	roles              RoleStore
	entries            EntryStore
	records            RecordStore
	publisher          events.Publisher
	supervisorRoleName string
}

func NewAccessService(grants GrantStore, roles RoleStore, entries EntryStore, records RecordStore, publisher events.Publisher, supervisorRoleName string) *AccessService {
	return &AccessService{
		grants:             grants,
		roles:              roles,
		entries:            entries,
		records:            records,
		publisher:          publisher,
		supervisorRoleName: supervisorRoleName,
	}
}

// Grant assigns a role to a user on a template, replacing any prior role
// the user held there. Side effects run only when the effective role
// actually changed: re-granting the same role is a no-op for the
// watcher.
func (s *AccessService) Grant(ctx context.Context, userID, templateID bson.ObjectID, roleName string, grantedBy bson.ObjectID) (*models.AccessGrant, error) {
	role, err := s.roles.FindByName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("invalid role %q: %w", roleName, err)
	}

	grant := &models.AccessGrant{
		UserID:     userID,
		TemplateID: templateID,
		RoleID:     role.ID,
		GrantedBy:  grantedBy,
	}

	previous, err := s.grants.Upsert(ctx, grant)
	if err != nil {
		return nil, err
	}

	roleChanged := previous == nil || previous.RoleID != role.ID
	if roleChanged {
		s.applyGrantSideEffects(ctx, userID, templateID, role)
	}

	grant.RoleID = role.ID
	return grant, nil
}

// Revoke removes a user's grant on a template. Existing verification
// records are left in place: approvals persist as historical record, and
// the live resolver count is the denominator, so removal only ever makes
// the threshold easier to satisfy.
func (s *AccessService) Revoke(ctx context.Context, userID, templateID bson.ObjectID) error {
	return s.grants.Delete(ctx, userID, templateID)
}

func (s *AccessService) ListByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.AccessGrant, error) {
	return s.grants.FindByTemplate(ctx, templateID)
}

// NotifyGrantChanged is the watcher trigger for grants mutated by the
// external access-management component. The caller only signals create
// or actual role-change events; re-saves without a role change never
// reach this path.
func (s *AccessService) NotifyGrantChanged(ctx context.Context, userID, templateID bson.ObjectID, roleName string) error {
	role, err := s.roles.FindByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("unknown role %q in grant event: %w", roleName, err)
	}
	s.applyGrantSideEffects(ctx, userID, templateID, role)
	return nil
}

// applyGrantSideEffects is the Access Grant Watcher. On a grant whose
// role is Supervisor, and only when the template already has entries, it
// backfills a pending verification record per existing entry and emits
// one SupervisorAdded event. The backfill reuses the create-if-absent
// upsert, so a supervisor granted twice, or re-promoted after demotion,
// never duplicates records or clobbers a decision already made.
//
// The triggering grant write has already committed when this runs, so
// individual backfill failures are logged and left for reconciliation;
// they never fail the grant.
func (s *AccessService) applyGrantSideEffects(ctx context.Context, userID, templateID bson.ObjectID, role *models.Role) {
	if !strings.EqualFold(role.Name, s.supervisorRoleName) {
		return
	}

	entryIDs, err := s.entries.FindIDsByTemplate(ctx, templateID)
	if err != nil {
		log.Printf("Failed to list entries for supervisor backfill on template %s: %v", templateID.Hex(), err)
		return
	}
	if len(entryIDs) == 0 {
		return
	}

	created := 0
	for _, entryID := range entryIDs {
		wasCreated, err := s.records.EnsurePending(ctx, entryID, userID)
		if err != nil {
			log.Printf("Failed to backfill verification record for entry %s, supervisor %s: %v",
				entryID.Hex(), userID.Hex(), err)
			continue
		}
		if wasCreated {
			created++
		}
	}

	supervisorBackfills.Add(float64(created))
	log.Printf("Supervisor %s added to template %s: backfilled %d of %d entries",
		userID.Hex(), templateID.Hex(), created, len(entryIDs))

	if s.publisher != nil {
		if err := s.publisher.PublishSupervisorAdded(ctx, userID.Hex(), templateID.Hex(), len(entryIDs)); err != nil {
			log.Printf("Failed to publish SupervisorAdded event for template %s: %v", templateID.Hex(), err)
		}
	}
}

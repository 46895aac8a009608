package service

import (
	"context"
	"strings"
	"time"

	"logbook-service/internal/models"
	"logbook-service/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// In-memory stand-ins for the Mongo repositories. They implement the
// store interfaces with the same not-found and upsert semantics.

type fakeRoleStore struct {
	roles []*models.Role
}

func (f *fakeRoleStore) add(name string) *models.Role {
	role := &models.Role{ID: bson.NewObjectID(), Name: name, IsSystem: true}
	f.roles = append(f.roles, role)
	return role
}

func (f *fakeRoleStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.Role, error) {
	for _, role := range f.roles {
		if role.ID == id {
			return role, nil
		}
	}
	return nil, repository.ErrRoleNotFound
}

func (f *fakeRoleStore) FindByName(ctx context.Context, name string) (*models.Role, error) {
	for _, role := range f.roles {
		if strings.EqualFold(role.Name, name) {
			return role, nil
		}
	}
	return nil, repository.ErrRoleNotFound
}

type fakeTemplateStore struct {
	templates []*models.Template
}

func (f *fakeTemplateStore) Create(ctx context.Context, template *models.Template) (*models.Template, error) {
	template.ID = bson.NewObjectID()
	template.CreatedAt = time.Now()
	template.UpdatedAt = template.CreatedAt
	f.templates = append(f.templates, template)
	return template, nil
}

func (f *fakeTemplateStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.Template, error) {
	for _, template := range f.templates {
		if template.ID == id {
			return template, nil
		}
	}
	return nil, repository.ErrTemplateNotFound
}

func (f *fakeTemplateStore) Update(ctx context.Context, template *models.Template) error {
	for i, existing := range f.templates {
		if existing.ID == template.ID {
			f.templates[i] = template
			return nil
		}
	}
	return repository.ErrTemplateNotFound
}

func (f *fakeTemplateStore) Delete(ctx context.Context, id bson.ObjectID) error {
	for i, template := range f.templates {
		if template.ID == id {
			f.templates = append(f.templates[:i], f.templates[i+1:]...)
			return nil
		}
	}
	return repository.ErrTemplateNotFound
}

func (f *fakeTemplateStore) FindByInstitution(ctx context.Context, institutionID bson.ObjectID) ([]*models.Template, error) {
	var out []*models.Template
	for _, template := range f.templates {
		if template.InstitutionID != nil && *template.InstitutionID == institutionID {
			out = append(out, template)
		}
	}
	return out, nil
}

type fakeEntryStore struct {
	entries []*models.Entry
}

func (f *fakeEntryStore) Create(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	entry.ID = bson.NewObjectID()
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeEntryStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.Entry, error) {
	for _, entry := range f.entries {
		if entry.ID == id {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (f *fakeEntryStore) UpdatePayload(ctx context.Context, id bson.ObjectID, payload models.Payload) error {
	for _, entry := range f.entries {
		if entry.ID == id {
			entry.Payload = payload
			entry.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrEntryNotFound
}

func (f *fakeEntryStore) Delete(ctx context.Context, id bson.ObjectID) error {
	for i, entry := range f.entries {
		if entry.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrEntryNotFound
}

func (f *fakeEntryStore) FindByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.Entry, error) {
	var out []*models.Entry
	for _, entry := range f.entries {
		if entry.TemplateID == templateID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) FindByWriter(ctx context.Context, writerID bson.ObjectID) ([]*models.Entry, error) {
	var out []*models.Entry
	for _, entry := range f.entries {
		if entry.WriterID == writerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) FindIDsByTemplate(ctx context.Context, templateID bson.ObjectID) ([]bson.ObjectID, error) {
	var out []bson.ObjectID
	for _, entry := range f.entries {
		if entry.TemplateID == templateID {
			out = append(out, entry.ID)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) CountByTemplate(ctx context.Context, templateID bson.ObjectID) (int64, error) {
	ids, _ := f.FindIDsByTemplate(ctx, templateID)
	return int64(len(ids)), nil
}

type fakeGrantStore struct {
	grants []*models.AccessGrant
}

func (f *fakeGrantStore) Upsert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	for _, existing := range f.grants {
		if existing.UserID == grant.UserID && existing.TemplateID == grant.TemplateID {
			previous := *existing
			existing.RoleID = grant.RoleID
			existing.GrantedBy = grant.GrantedBy
			existing.UpdatedAt = time.Now()
			return &previous, nil
		}
	}
	grant.ID = bson.NewObjectID()
	grant.CreatedAt = time.Now()
	grant.UpdatedAt = grant.CreatedAt
	f.grants = append(f.grants, grant)
	return nil, nil
}

func (f *fakeGrantStore) FindByUserAndTemplate(ctx context.Context, userID, templateID bson.ObjectID) (*models.AccessGrant, error) {
	for _, grant := range f.grants {
		if grant.UserID == userID && grant.TemplateID == templateID {
			return grant, nil
		}
	}
	return nil, repository.ErrGrantNotFound
}

func (f *fakeGrantStore) FindByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.AccessGrant, error) {
	var out []*models.AccessGrant
	for _, grant := range f.grants {
		if grant.TemplateID == templateID {
			out = append(out, grant)
		}
	}
	return out, nil
}

func (f *fakeGrantStore) FindUserIDsByTemplateAndRole(ctx context.Context, templateID, roleID bson.ObjectID) ([]bson.ObjectID, error) {
	var out []bson.ObjectID
	for _, grant := range f.grants {
		if grant.TemplateID == templateID && grant.RoleID == roleID {
			out = append(out, grant.UserID)
		}
	}
	return out, nil
}

func (f *fakeGrantStore) Delete(ctx context.Context, userID, templateID bson.ObjectID) error {
	for i, grant := range f.grants {
		if grant.UserID == userID && grant.TemplateID == templateID {
			f.grants = append(f.grants[:i], f.grants[i+1:]...)
			return nil
		}
	}
	return repository.ErrGrantNotFound
}

func (f *fakeGrantStore) DeleteByTemplate(ctx context.Context, templateID bson.ObjectID) error {
	var kept []*models.AccessGrant
	for _, grant := range f.grants {
		if grant.TemplateID != templateID {
			kept = append(kept, grant)
		}
	}
	f.grants = kept
	return nil
}

type fakeRecordStore struct {
	records []*models.VerificationRecord
}

func (f *fakeRecordStore) find(entryID, supervisorID bson.ObjectID) *models.VerificationRecord {
	for _, record := range f.records {
		if record.EntryID == entryID && record.SupervisorID == supervisorID {
			return record
		}
	}
	return nil
}

func (f *fakeRecordStore) EnsurePending(ctx context.Context, entryID, supervisorID bson.ObjectID) (bool, error) {
	if f.find(entryID, supervisorID) != nil {
		return false, nil
	}
	f.records = append(f.records, &models.VerificationRecord{
		ID:           bson.NewObjectID(),
		EntryID:      entryID,
		SupervisorID: supervisorID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
	return true, nil
}

func (f *fakeRecordStore) Decide(ctx context.Context, entryID, supervisorID bson.ObjectID, approved bool, notes string, decidedAt time.Time) error {
	record := f.find(entryID, supervisorID)
	if record == nil {
		record = &models.VerificationRecord{
			ID:           bson.NewObjectID(),
			EntryID:      entryID,
			SupervisorID: supervisorID,
			CreatedAt:    time.Now(),
		}
		f.records = append(f.records, record)
	}
	record.Approved = approved
	record.Notes = notes
	record.DecidedAt = &decidedAt
	record.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRecordStore) Reset(ctx context.Context, id bson.ObjectID, note string) error {
	for _, record := range f.records {
		if record.ID == id {
			record.Approved = false
			record.DecidedAt = nil
			record.Notes = note
			record.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrRecordNotFound
}

func (f *fakeRecordStore) Delete(ctx context.Context, entryID, supervisorID bson.ObjectID) error {
	for i, record := range f.records {
		if record.EntryID == entryID && record.SupervisorID == supervisorID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return repository.ErrRecordNotFound
}

func (f *fakeRecordStore) DeleteByEntry(ctx context.Context, entryID bson.ObjectID) error {
	var kept []*models.VerificationRecord
	for _, record := range f.records {
		if record.EntryID != entryID {
			kept = append(kept, record)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeRecordStore) FindByEntry(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error) {
	var out []*models.VerificationRecord
	for _, record := range f.records {
		if record.EntryID == entryID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) FindDecidedByEntry(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error) {
	var out []*models.VerificationRecord
	for _, record := range f.records {
		if record.EntryID == entryID && record.Decided() {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) CountApproved(ctx context.Context, entryID bson.ObjectID) (int, error) {
	count := 0
	for _, record := range f.records {
		if record.EntryID == entryID && record.Decided() && record.Approved {
			count++
		}
	}
	return count, nil
}

func (f *fakeRecordStore) CountRejected(ctx context.Context, entryID bson.ObjectID) (int, error) {
	count := 0
	for _, record := range f.records {
		if record.EntryID == entryID && record.Decided() && !record.Approved {
			count++
		}
	}
	return count, nil
}

func (f *fakeRecordStore) CountPending(ctx context.Context, entryID bson.ObjectID) (int, error) {
	count := 0
	for _, record := range f.records {
		if record.EntryID == entryID && !record.Decided() {
			count++
		}
	}
	return count, nil
}

type publishedDataChange struct {
	entryID      string
	recordsReset int
}

type publishedSupervisorAdded struct {
	supervisorID string
	templateID   string
	entryCount   int
}

type fakePublisher struct {
	dataChanged     []publishedDataChange
	supervisorAdded []publishedSupervisorAdded
	entryVerified   []string
}

func (f *fakePublisher) PublishEntryDataChanged(ctx context.Context, entryID, templateID, updatedBy string, before, after map[string]any, recordsReset int) error {
	f.dataChanged = append(f.dataChanged, publishedDataChange{entryID: entryID, recordsReset: recordsReset})
	return nil
}

func (f *fakePublisher) PublishSupervisorAdded(ctx context.Context, supervisorID, templateID string, entryCount int) error {
	f.supervisorAdded = append(f.supervisorAdded, publishedSupervisorAdded{
		supervisorID: supervisorID,
		templateID:   templateID,
		entryCount:   entryCount,
	})
	return nil
}

func (f *fakePublisher) PublishEntryVerified(ctx context.Context, entryID, templateID, writerID string) error {
	f.entryVerified = append(f.entryVerified, entryID)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// testEnv wires the services over the fakes with the Supervisor and
// Owner roles pre-seeded and one template created.
type testEnv struct {
	roles     *fakeRoleStore
	templates *fakeTemplateStore
	entries   *fakeEntryStore
	grants    *fakeGrantStore
	records   *fakeRecordStore
	publisher *fakePublisher

	resolver     *SupervisorResolver
	verification *VerificationService
	entryService *EntryService
	access       *AccessService

	supervisorRole *models.Role
	editorRole     *models.Role
	template       *models.Template
}

func newTestEnv() *testEnv {
	env := &testEnv{
		roles:     &fakeRoleStore{},
		templates: &fakeTemplateStore{},
		entries:   &fakeEntryStore{},
		grants:    &fakeGrantStore{},
		records:   &fakeRecordStore{},
		publisher: &fakePublisher{},
	}

	env.roles.add("Owner")
	env.supervisorRole = env.roles.add("Supervisor")
	env.editorRole = env.roles.add("Editor")

	env.resolver = NewSupervisorResolver(env.roles, env.grants, "Supervisor")
	env.verification = NewVerificationService(env.records, env.entries, env.resolver, env.publisher)
	env.entryService = NewEntryService(env.entries, env.templates, env.records, env.resolver, env.publisher)
	env.access = NewAccessService(env.grants, env.roles, env.entries, env.records, env.publisher, "Supervisor")

	env.template, _ = env.templates.Create(context.Background(), &models.Template{Name: "Flight Log"})
	return env
}

// addSupervisor grants the supervisor role directly at the store layer,
// bypassing the watcher side effects.
func (e *testEnv) addSupervisor(userID bson.ObjectID) {
	e.grants.Upsert(context.Background(), &models.AccessGrant{
		UserID:     userID,
		TemplateID: e.template.ID,
		RoleID:     e.supervisorRole.ID,
		GrantedBy:  userID,
	})
}

// addEntry inserts an entry directly at the store layer, without
// seeding verification records.
func (e *testEnv) addEntry(writerID bson.ObjectID, payload models.Payload) *models.Entry {
	entry, _ := e.entries.Create(context.Background(), &models.Entry{
		TemplateID: e.template.ID,
		WriterID:   writerID,
		Payload:    payload,
	})
	return entry
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"logbook-service/internal/events"
	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// EntryService owns entry creation and mutation, and keeps verification
// records consistent with both: new entries get a pending record per
// current supervisor, and payload changes reset every decided record
// back to pending.
type EntryService struct {
	entries   EntryStore
	templates TemplateStore
	records   RecordStore
	resolver  *SupervisorResolver
	publisher events.Publisher
	now       func() time.Time
}

func NewEntryService(entries EntryStore, templates TemplateStore, records RecordStore, resolver *SupervisorResolver, publisher events.Publisher) *EntryService {
	return &EntryService{
		entries:   entries,
		templates: templates,
		records:   records,
		resolver:  resolver,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateEntry persists the entry, then seeds one pending verification
// record per supervisor currently assigned to the template. The seeding
// is create-if-absent, and a caller observing success is guaranteed the
// entry write committed; an individual record failure is logged for
// reconciliation rather than aborting the committed write.
func (s *EntryService) CreateEntry(ctx context.Context, templateID, writerID bson.ObjectID, payload models.Payload) (*models.Entry, error) {
	if _, err := s.templates.FindByID(ctx, templateID); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	entry, err := s.entries.Create(ctx, &models.Entry{
		TemplateID: templateID,
		WriterID:   writerID,
		Payload:    payload,
	})
	if err != nil {
		return nil, err
	}

	supervisors, err := s.resolver.Resolve(ctx, templateID)
	if err != nil {
		log.Printf("Failed to resolve supervisors for new entry %s: %v", entry.ID.Hex(), err)
		return entry, nil
	}

	for _, supervisorID := range supervisors {
		if _, err := s.records.EnsurePending(ctx, entry.ID, supervisorID); err != nil {
			log.Printf("Failed to seed verification record for entry %s, supervisor %s: %v",
				entry.ID.Hex(), supervisorID.Hex(), err)
		}
	}

	return entry, nil
}

// UpdateEntry persists the new payload, then resets decided verification
// records when the payload actually changed. Returns the updated entry
// and the number of records reset.
//
// The reset fires only when both hold: the payload differs structurally
// from the previous one, and at least one supervisor has ever rendered a
// decision. An unchanged payload (regardless of key order) is a no-op
// and emits nothing.
func (s *EntryService) UpdateEntry(ctx context.Context, entryID bson.ObjectID, newPayload models.Payload, actorID bson.ObjectID) (*models.Entry, int, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, 0, err
	}
	before := entry.Payload

	if err := s.entries.UpdatePayload(ctx, entryID, newPayload); err != nil {
		return nil, 0, err
	}
	entry.Payload = newPayload

	if payloadsEqual(before, newPayload) {
		return entry, 0, nil
	}

	decided, err := s.records.FindDecidedByEntry(ctx, entryID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load decided records for entry %s: %w", entryID.Hex(), err)
	}
	if len(decided) == 0 {
		return entry, 0, nil
	}

	resetAt := s.now()
	resetCount := 0
	for _, record := range decided {
		if err := s.records.Reset(ctx, record.ID, resetNote(record, resetAt)); err != nil {
			log.Printf("Failed to reset verification record %s for entry %s: %v",
				record.ID.Hex(), entryID.Hex(), err)
			continue
		}
		resetCount++
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEntryDataChanged(ctx, entryID.Hex(), entry.TemplateID.Hex(), actorID.Hex(), before, newPayload, resetCount); err != nil {
			log.Printf("Failed to publish EntryDataChanged event for entry %s: %v", entryID.Hex(), err)
		}
	}

	return entry, resetCount, nil
}

// resetNote records what the decision was before the reset so the audit
// trail survives the flip back to pending.
func resetNote(record *models.VerificationRecord, at time.Time) string {
	note := fmt.Sprintf("[RESET] Entry data changed on %s. Previous status: %s.",
		at.Format(time.RFC3339), record.Status())
	if record.Notes != "" {
		note += " Previous note: " + record.Notes
	}
	return note
}

func (s *EntryService) GetEntry(ctx context.Context, entryID bson.ObjectID) (*models.Entry, error) {
	return s.entries.FindByID(ctx, entryID)
}

func (s *EntryService) ListByTemplate(ctx context.Context, templateID bson.ObjectID) ([]*models.Entry, error) {
	if _, err := s.templates.FindByID(ctx, templateID); err != nil {
		return nil, err
	}
	return s.entries.FindByTemplate(ctx, templateID)
}

func (s *EntryService) ListByWriter(ctx context.Context, writerID bson.ObjectID) ([]*models.Entry, error) {
	return s.entries.FindByWriter(ctx, writerID)
}

// DeleteEntry removes the entry and cascades to its verification
// records.
func (s *EntryService) DeleteEntry(ctx context.Context, entryID bson.ObjectID) error {
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return err
	}
	if err := s.records.DeleteByEntry(ctx, entryID); err != nil {
		log.Printf("Failed to delete verification records for entry %s: %v", entryID.Hex(), err)
	}
	return nil
}

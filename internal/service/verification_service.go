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

// VerificationService owns the aggregation rule: an entry is verified if
// and only if its approved record count reaches the template's current
// supervisor count. Zero supervisors means no verification is required
// and the entry is trivially verified.
type VerificationService struct {
	records   RecordStore
	entries   EntryStore
	resolver  *SupervisorResolver
	publisher events.Publisher
	now       func() time.Time
}

func NewVerificationService(records RecordStore, entries EntryStore, resolver *SupervisorResolver, publisher events.Publisher) *VerificationService {
	return &VerificationService{
		records:   records,
		entries:   entries,
		resolver:  resolver,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *VerificationService) IsVerified(ctx context.Context, entryID bson.ObjectID) (bool, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return false, err
	}
	return s.isVerified(ctx, entry)
}

func (s *VerificationService) isVerified(ctx context.Context, entry *models.Entry) (bool, error) {
	supervisors, err := s.resolver.Resolve(ctx, entry.TemplateID)
	if err != nil {
		return false, err
	}
	if len(supervisors) == 0 {
		return true, nil
	}

	approved, err := s.records.CountApproved(ctx, entry.ID)
	if err != nil {
		return false, err
	}
	return approved >= len(supervisors), nil
}

// Progress returns the approved-over-required tuple. The denominator is
// the live supervisor count, which can diverge from the number of
// existing records when a supervisor was removed after records were
// created; stale records are deliberately left in place.
func (s *VerificationService) Progress(ctx context.Context, entryID bson.ObjectID) (*models.VerificationProgress, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	supervisors, err := s.resolver.Resolve(ctx, entry.TemplateID)
	if err != nil {
		return nil, err
	}

	approved, err := s.records.CountApproved(ctx, entryID)
	if err != nil {
		return nil, err
	}

	return &models.VerificationProgress{
		Approved:         approved,
		TotalSupervisors: len(supervisors),
	}, nil
}

// DetailedStatus reports the full per-entry picture. With zero
// supervisors it returns the distinguished "no verification required"
// shape instead of zero counts, so callers render "N/A" rather than
// "0/0 verified".
func (s *VerificationService) DetailedStatus(ctx context.Context, entryID bson.ObjectID) (*models.VerificationStatus, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	supervisors, err := s.resolver.Resolve(ctx, entry.TemplateID)
	if err != nil {
		return nil, err
	}

	if len(supervisors) == 0 {
		return &models.VerificationStatus{
			EntryID:              entryID,
			RequiresVerification: false,
			Verified:             true,
		}, nil
	}

	approved, err := s.records.CountApproved(ctx, entryID)
	if err != nil {
		return nil, err
	}
	rejected, err := s.records.CountRejected(ctx, entryID)
	if err != nil {
		return nil, err
	}
	pending, err := s.records.CountPending(ctx, entryID)
	if err != nil {
		return nil, err
	}

	return &models.VerificationStatus{
		EntryID:              entryID,
		RequiresVerification: true,
		Verified:             approved >= len(supervisors),
		Approved:             approved,
		Rejected:             rejected,
		Pending:              pending,
		TotalSupervisors:     len(supervisors),
	}, nil
}

// Records returns all verification records for an entry, for detail
// views and exports.
func (s *VerificationService) Records(ctx context.Context, entryID bson.ObjectID) ([]*models.VerificationRecord, error) {
	if _, err := s.entries.FindByID(ctx, entryID); err != nil {
		return nil, err
	}
	return s.records.FindByEntry(ctx, entryID)
}

// Decide records one supervisor's approve/reject decision. Re-deciding
// overwrites the prior decision in place. Only users currently holding
// the supervisor role on the entry's template may decide.
func (s *VerificationService) Decide(ctx context.Context, entryID, supervisorID bson.ObjectID, approved bool, notes string) error {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return err
	}

	isSupervisor, err := s.resolver.IsSupervisor(ctx, entry.TemplateID, supervisorID)
	if err != nil {
		return err
	}
	if !isSupervisor {
		return ErrNotSupervisor
	}

	wasVerified, err := s.isVerified(ctx, entry)
	if err != nil {
		return err
	}

	if err := s.records.Decide(ctx, entryID, supervisorID, approved, notes, s.now()); err != nil {
		return fmt.Errorf("failed to record decision for entry %s: %w", entryID.Hex(), err)
	}

	if approved && !wasVerified {
		nowVerified, err := s.isVerified(ctx, entry)
		if err != nil {
			log.Printf("Failed to check verification state after decision on entry %s: %v", entryID.Hex(), err)
			return nil
		}
		if nowVerified && s.publisher != nil {
			if err := s.publisher.PublishEntryVerified(ctx, entryID.Hex(), entry.TemplateID.Hex(), entry.WriterID.Hex()); err != nil {
				log.Printf("Failed to publish EntryVerified event for entry %s: %v", entryID.Hex(), err)
			}
		}
	}

	return nil
}

// RevokeDecision deletes one supervisor's record for an entry entirely.
func (s *VerificationService) RevokeDecision(ctx context.Context, entryID, supervisorID bson.ObjectID) error {
	if _, err := s.entries.FindByID(ctx, entryID); err != nil {
		return err
	}
	return s.records.Delete(ctx, entryID, supervisorID)
}

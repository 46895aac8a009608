package service

import (
	"context"
	"errors"
	"testing"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestIsVerifiedNoSupervisors(t *testing.T) {
	env := newTestEnv()
	entry := env.addEntry(bson.NewObjectID(), nil)

	verified, err := env.verification.IsVerified(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("IsVerified: %v", err)
	}
	if !verified {
		t.Error("entry with no supervisors should be trivially verified")
	}

	status, err := env.verification.DetailedStatus(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("DetailedStatus: %v", err)
	}
	if status.RequiresVerification {
		t.Error("RequiresVerification should be false with no supervisors")
	}
	if !status.Verified {
		t.Error("Verified should be true with no supervisors")
	}
}

func TestVerificationRequiresAllSupervisors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	sup2 := bson.NewObjectID()
	sup3 := bson.NewObjectID()
	env.addSupervisor(sup1)
	env.addSupervisor(sup2)
	env.addSupervisor(sup3)

	writer := bson.NewObjectID()
	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, writer, models.Payload{"hours": 2})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if pending, _ := env.records.CountPending(ctx, entry.ID); pending != 3 {
		t.Fatalf("expected 3 pending records after creation, got %d", pending)
	}

	steps := []struct {
		supervisor bson.ObjectID
		approved   bool
		verified   bool
	}{
		{sup1, true, false},
		{sup2, true, false},
		{sup3, true, true},
	}
	for i, step := range steps {
		if err := env.verification.Decide(ctx, entry.ID, step.supervisor, step.approved, ""); err != nil {
			t.Fatalf("Decide step %d: %v", i, err)
		}
		verified, err := env.verification.IsVerified(ctx, entry.ID)
		if err != nil {
			t.Fatalf("IsVerified step %d: %v", i, err)
		}
		if verified != step.verified {
			t.Errorf("step %d: verified = %v, want %v", i, verified, step.verified)
		}
	}

	if len(env.publisher.entryVerified) != 1 {
		t.Errorf("expected exactly one EntryVerified event, got %d", len(env.publisher.entryVerified))
	}
}

func TestRejectionBlocksVerification(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	sup2 := bson.NewObjectID()
	env.addSupervisor(sup1)
	env.addSupervisor(sup2)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(), models.Payload{"hours": 1})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := env.verification.Decide(ctx, entry.ID, sup1, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, sup2, false, "incomplete"); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	status, err := env.verification.DetailedStatus(ctx, entry.ID)
	if err != nil {
		t.Fatalf("DetailedStatus: %v", err)
	}
	if status.Verified {
		t.Error("entry with a rejection should not be verified")
	}
	if status.Approved != 1 || status.Rejected != 1 || status.Pending != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0", status.Approved, status.Rejected, status.Pending)
	}

	// Re-deciding flips the rejection to approval and crosses the
	// threshold.
	if err := env.verification.Decide(ctx, entry.ID, sup2, true, "fixed"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	verified, err := env.verification.IsVerified(ctx, entry.ID)
	if err != nil {
		t.Fatalf("IsVerified: %v", err)
	}
	if !verified {
		t.Error("entry should be verified after rejection flipped to approval")
	}
	if records, _ := env.records.FindByEntry(ctx, entry.ID); len(records) != 2 {
		t.Errorf("re-deciding should not add records, got %d", len(records))
	}
}

func TestDecideByNonSupervisor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	supervisor := bson.NewObjectID()
	env.addSupervisor(supervisor)
	entry := env.addEntry(bson.NewObjectID(), nil)

	err := env.verification.Decide(ctx, entry.ID, bson.NewObjectID(), true, "")
	if !errors.Is(err, ErrNotSupervisor) {
		t.Fatalf("Decide by outsider: got %v, want ErrNotSupervisor", err)
	}

	// An editor on the same template is still not a supervisor.
	editor := bson.NewObjectID()
	env.grants.Upsert(ctx, &models.AccessGrant{
		UserID:     editor,
		TemplateID: env.template.ID,
		RoleID:     env.editorRole.ID,
		GrantedBy:  editor,
	})
	err = env.verification.Decide(ctx, entry.ID, editor, true, "")
	if !errors.Is(err, ErrNotSupervisor) {
		t.Fatalf("Decide by editor: got %v, want ErrNotSupervisor", err)
	}
}

func TestSupervisorRemovalLowersThreshold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	sup2 := bson.NewObjectID()
	env.addSupervisor(sup1)
	env.addSupervisor(sup2)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(), models.Payload{"hours": 4})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := env.verification.Decide(ctx, entry.ID, sup1, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	verified, _ := env.verification.IsVerified(ctx, entry.ID)
	if verified {
		t.Fatal("entry should not be verified at 1 of 2 approvals")
	}

	// Removing the undecided supervisor shrinks the denominator; the
	// orphaned pending record stays but no longer counts against the
	// entry.
	if err := env.access.Revoke(ctx, sup2, env.template.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	verified, err = env.verification.IsVerified(ctx, entry.ID)
	if err != nil {
		t.Fatalf("IsVerified: %v", err)
	}
	if !verified {
		t.Error("entry should be verified once the live supervisor set is satisfied")
	}
	if records, _ := env.records.FindByEntry(ctx, entry.ID); len(records) != 2 {
		t.Errorf("revocation should leave records in place, got %d", len(records))
	}
}

func TestRevokeDecision(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	supervisor := bson.NewObjectID()
	env.addSupervisor(supervisor)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(), nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, supervisor, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if err := env.verification.RevokeDecision(ctx, entry.ID, supervisor); err != nil {
		t.Fatalf("RevokeDecision: %v", err)
	}
	if records, _ := env.records.FindByEntry(ctx, entry.ID); len(records) != 0 {
		t.Errorf("expected no records after revocation, got %d", len(records))
	}

	if err := env.verification.RevokeDecision(ctx, entry.ID, supervisor); err == nil {
		t.Error("revoking an absent record should fail")
	}
}

func TestProgressUsesLiveSupervisorCount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	env.addSupervisor(sup1)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(), nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, sup1, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	// A supervisor added after the decision raises the denominator even
	// though their record was only just backfilled.
	sup2 := bson.NewObjectID()
	if _, err := env.access.Grant(ctx, sup2, env.template.ID, "Supervisor", sup1); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	progress, err := env.verification.Progress(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.Approved != 1 || progress.TotalSupervisors != 2 {
		t.Errorf("progress = %d/%d, want 1/2", progress.Approved, progress.TotalSupervisors)
	}
}

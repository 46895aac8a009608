package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestCreateEntrySeedsPendingRecords(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	sup2 := bson.NewObjectID()
	env.addSupervisor(sup1)
	env.addSupervisor(sup2)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(), models.Payload{"hours": 3})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	records, _ := env.records.FindByEntry(ctx, entry.ID)
	if len(records) != 2 {
		t.Fatalf("expected 2 seeded records, got %d", len(records))
	}
	for _, record := range records {
		if record.Decided() {
			t.Errorf("seeded record for %s should be pending", record.SupervisorID.Hex())
		}
	}
}

func TestCreateEntryUnknownTemplate(t *testing.T) {
	env := newTestEnv()

	_, err := env.entryService.CreateEntry(context.Background(), bson.NewObjectID(), bson.NewObjectID(), nil)
	if err == nil {
		t.Fatal("creating an entry against a missing template should fail")
	}
}

func TestUpdateEntryUnchangedPayloadIsNoOp(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	supervisor := bson.NewObjectID()
	env.addSupervisor(supervisor)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(),
		models.Payload{"hours": 2, "route": "KSFO-KLAX"})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, supervisor, true, "looks right"); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	// Same content, different key order and a float where an int was.
	_, resetCount, err := env.entryService.UpdateEntry(ctx, entry.ID,
		models.Payload{"route": "KSFO-KLAX", "hours": 2.0}, bson.NewObjectID())
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if resetCount != 0 {
		t.Errorf("unchanged payload reset %d records, want 0", resetCount)
	}

	record := env.records.find(entry.ID, supervisor)
	if record == nil || !record.Decided() || !record.Approved {
		t.Error("approval should survive an unchanged-payload update")
	}
	if len(env.publisher.dataChanged) != 0 {
		t.Errorf("unchanged payload published %d events, want 0", len(env.publisher.dataChanged))
	}
}

func TestUpdateEntryResetsDecidedRecords(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	sup2 := bson.NewObjectID()
	sup3 := bson.NewObjectID()
	env.addSupervisor(sup1)
	env.addSupervisor(sup2)
	env.addSupervisor(sup3)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(),
		models.Payload{"hours": 2})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := env.verification.Decide(ctx, entry.ID, sup1, true, "ok"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, sup2, false, "wrong date"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	// sup3 never decides.

	env.entryService.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	updated, resetCount, err := env.entryService.UpdateEntry(ctx, entry.ID,
		models.Payload{"hours": 5}, bson.NewObjectID())
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if resetCount != 2 {
		t.Fatalf("reset %d records, want 2 (only decided records reset)", resetCount)
	}
	if updated.Payload["hours"] != 5 {
		t.Errorf("payload not updated, got %v", updated.Payload["hours"])
	}

	for _, supervisor := range []bson.ObjectID{sup1, sup2, sup3} {
		record := env.records.find(entry.ID, supervisor)
		if record == nil {
			t.Fatalf("record for %s missing", supervisor.Hex())
		}
		if record.Decided() || record.Approved {
			t.Errorf("record for %s should be back to pending", supervisor.Hex())
		}
	}

	approvedNote := env.records.find(entry.ID, sup1).Notes
	if !strings.HasPrefix(approvedNote, "[RESET] Entry data changed on 2026-03-14T09:00:00Z. Previous status: Approved.") {
		t.Errorf("unexpected reset note: %q", approvedNote)
	}
	if !strings.Contains(approvedNote, "Previous note: ok") {
		t.Errorf("reset note should carry the prior note, got %q", approvedNote)
	}
	rejectedNote := env.records.find(entry.ID, sup2).Notes
	if !strings.Contains(rejectedNote, "Previous status: Rejected.") {
		t.Errorf("unexpected reset note: %q", rejectedNote)
	}
	untouchedNote := env.records.find(entry.ID, sup3).Notes
	if untouchedNote != "" {
		t.Errorf("pending record should not get a reset note, got %q", untouchedNote)
	}

	if len(env.publisher.dataChanged) != 1 {
		t.Fatalf("expected exactly one EntryDataChanged event, got %d", len(env.publisher.dataChanged))
	}
	if got := env.publisher.dataChanged[0]; got.entryID != entry.ID.Hex() || got.recordsReset != 2 {
		t.Errorf("event = %+v, want entry %s with 2 resets", got, entry.ID.Hex())
	}

	if verified, _ := env.verification.IsVerified(ctx, entry.ID); verified {
		t.Error("entry should not be verified after a reset")
	}
}

func TestUpdateEntryNoDecisionsNoEvent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.addSupervisor(bson.NewObjectID())

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(),
		models.Payload{"hours": 2})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	_, resetCount, err := env.entryService.UpdateEntry(ctx, entry.ID,
		models.Payload{"hours": 7}, bson.NewObjectID())
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if resetCount != 0 {
		t.Errorf("reset %d records with no decisions on file, want 0", resetCount)
	}
	if len(env.publisher.dataChanged) != 0 {
		t.Errorf("published %d events with nothing to reset, want 0", len(env.publisher.dataChanged))
	}
}

func TestDeleteEntryCascadesRecords(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.addSupervisor(bson.NewObjectID())
	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(), nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := env.entryService.DeleteEntry(ctx, entry.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := env.entryService.GetEntry(ctx, entry.ID); err == nil {
		t.Error("entry should be gone")
	}
	if records, _ := env.records.FindByEntry(ctx, entry.ID); len(records) != 0 {
		t.Errorf("expected records cascade, %d left", len(records))
	}
}

// Mirrors the lifecycle of one entry moving through edit and re-approval.
func TestEntryLifecycleEditAfterVerification(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	sup1 := bson.NewObjectID()
	sup2 := bson.NewObjectID()
	env.addSupervisor(sup1)
	env.addSupervisor(sup2)

	entry, err := env.entryService.CreateEntry(ctx, env.template.ID, bson.NewObjectID(),
		models.Payload{"procedure": "appendectomy", "duration": 90})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := env.verification.Decide(ctx, entry.ID, sup1, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, sup2, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if verified, _ := env.verification.IsVerified(ctx, entry.ID); !verified {
		t.Fatal("entry should be verified after both approvals")
	}

	if _, resetCount, err := env.entryService.UpdateEntry(ctx, entry.ID,
		models.Payload{"procedure": "appendectomy", "duration": 120}, bson.NewObjectID()); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	} else if resetCount != 2 {
		t.Fatalf("reset %d records, want 2", resetCount)
	}

	if verified, _ := env.verification.IsVerified(ctx, entry.ID); verified {
		t.Fatal("edit must drop the entry back to unverified")
	}

	if err := env.verification.Decide(ctx, entry.ID, sup1, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if err := env.verification.Decide(ctx, entry.ID, sup2, true, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if verified, _ := env.verification.IsVerified(ctx, entry.ID); !verified {
		t.Fatal("entry should verify again after fresh approvals")
	}
	if len(env.publisher.entryVerified) != 2 {
		t.Errorf("expected 2 EntryVerified events across the lifecycle, got %d", len(env.publisher.entryVerified))
	}
}

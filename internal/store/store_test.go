package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"synctl/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synctl-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndFindMember(t *testing.T) {
	s := setupTestStore(t)

	m := &models.Member{Email: "a@co", Name: "Alice", ForgeUsername: "a-gh"}
	if err := s.UpsertMember(m); err != nil {
		t.Fatalf("UpsertMember() error = %v", err)
	}
	if m.MemberID == "" {
		t.Fatal("UpsertMember() did not assign a MemberID")
	}

	found, err := s.FindMemberByEmail("a@co")
	if err != nil {
		t.Fatalf("FindMemberByEmail() error = %v", err)
	}
	if found.MemberID != m.MemberID {
		t.Errorf("FindMemberByEmail() id = %s, want %s", found.MemberID, m.MemberID)
	}

	if _, err := s.FindMemberByEmail("missing@co"); err != ErrNotFound {
		t.Errorf("FindMemberByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTaskSnapshotsAudit(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}

	updated, err := s.UpdateTask(task.TaskID, func(t *models.Task) error {
		t.Status = models.StatusInProgress
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Errorf("UpdateTask() status = %s, want %s", updated.Status, models.StatusInProgress)
	}

	entries, err := s.ListAudit("task", task.TaskID, 0)
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListAudit() len = %d, want 1", len(entries))
	}
}

func TestMappingRefImmutable(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}

	ref := models.ForgeRef{Repo: "o/r", Number: 42}
	if err := s.SetMappingForgeRef(task.TaskID, ref); err != nil {
		t.Fatalf("SetMappingForgeRef() error = %v", err)
	}

	err := s.SetMappingForgeRef(task.TaskID, models.ForgeRef{Repo: "o/r", Number: 99})
	if err == nil {
		t.Fatal("SetMappingForgeRef() expected error on second bind, got nil")
	}

	m, err := s.GetMappingByTask(task.TaskID)
	if err != nil {
		t.Fatalf("GetMappingByTask() error = %v", err)
	}
	if m.ForgeNumber != 42 {
		t.Errorf("ForgeNumber = %d, want 42 (should not have been overwritten)", m.ForgeNumber)
	}
}

func TestClaimOutboxExcludesInFlightTask(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}

	first, err := s.EnqueueOutbox(models.KindForgeCreateIssue, task.TaskID, models.JSONPayload{"taskId": task.TaskID})
	if err != nil {
		t.Fatalf("EnqueueOutbox() error = %v", err)
	}
	if _, err := s.EnqueueOutbox(models.KindForgeUpdateIssue, task.TaskID, models.JSONPayload{"taskId": task.TaskID}); err != nil {
		t.Fatalf("EnqueueOutbox() error = %v", err)
	}

	now := time.Now()
	claimed, err := s.ClaimOutbox(10, now)
	if err != nil {
		t.Fatalf("ClaimOutbox() error = %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("ClaimOutbox() claimed = %d, want 1 (second event shares taskId)", len(claimed))
	}
	if claimed[0].EventID != first.EventID {
		t.Errorf("ClaimOutbox() claimed event %s, want %s (enqueue order)", claimed[0].EventID, first.EventID)
	}

	if err := s.CompleteOutbox(first.EventID, OutboxOutcome{Sent: true}); err != nil {
		t.Fatalf("CompleteOutbox() error = %v", err)
	}

	claimed, err = s.ClaimOutbox(10, now)
	if err != nil {
		t.Fatalf("ClaimOutbox() error = %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("ClaimOutbox() second round claimed = %d, want 1", len(claimed))
	}
}

func TestClaimOutboxReclaimsStale(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	ev, err := s.EnqueueOutbox(models.KindForgeCreateIssue, task.TaskID, models.JSONPayload{"taskId": task.TaskID})
	if err != nil {
		t.Fatalf("EnqueueOutbox() error = %v", err)
	}

	if _, err := s.ClaimOutbox(10, time.Now()); err != nil {
		t.Fatalf("ClaimOutbox() error = %v", err)
	}

	// Simulate a crash: the event is stuck "processing" from long ago.
	staleTime := time.Now().Add(-ReclaimThreshold - time.Minute)
	if err := s.db.Model(&models.OutboxEvent{}).
		Where("event_id = ?", ev.EventID).
		Update("processing_started_at", staleTime).Error; err != nil {
		t.Fatalf("failed to backdate event: %v", err)
	}

	claimed, err := s.ClaimOutbox(10, time.Now())
	if err != nil {
		t.Fatalf("ClaimOutbox() error = %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("ClaimOutbox() after reclaim = %d, want 1", len(claimed))
	}
}

package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"synctl/internal/gateway/forge"
	"synctl/internal/gateway/sheet"
	"synctl/internal/models"
	"synctl/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synctl-reconciler-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := store.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeForgeSource struct {
	issues []forge.Issue
}

func (f *fakeForgeSource) ListIssuesSince(ctx context.Context, since time.Time) ([]forge.Issue, error) {
	return f.issues, nil
}

func TestForgePollerInsertsNewTaskFromUnmappedIssue(t *testing.T) {
	s := setupTestStore(t)
	fs := &fakeForgeSource{issues: []forge.Issue{
		{Number: 42, Title: "some bug", Body: "desc", State: "open", UpdatedAt: time.Now()},
	}}
	p := &ForgePoller{Store: s, Forge: fs, ForgeRepo: "o/r"}

	p.tick(context.Background())

	m, err := s.GetMappingByForgeRef("o/r", 42)
	if err != nil {
		t.Fatalf("GetMappingByForgeRef() error = %v", err)
	}
	task, err := s.FindTaskByID(m.TaskID)
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if task.Title != "some bug" {
		t.Errorf("task.Title = %q, want %q", task.Title, "some bug")
	}
	if task.Source != models.SourceForgePull {
		t.Errorf("task.Source = %q, want %q", task.Source, models.SourceForgePull)
	}

	cursor, err := s.GetCursor(models.SourceForge)
	if err != nil {
		t.Fatalf("GetCursor() error = %v", err)
	}
	if cursor == "" {
		t.Error("cursor not advanced after tick")
	}
}

func TestForgePollerLocalWinsWhenLocalIsNewer(t *testing.T) {
	s := setupTestStore(t)
	task := &models.Task{Title: "local title"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	if err := s.SetMappingForgeRef(task.TaskID, models.ForgeRef{Repo: "o/r", Number: 7}); err != nil {
		t.Fatalf("SetMappingForgeRef() error = %v", err)
	}
	// Re-fetch to get the persisted UpdatedAt.
	task, err := s.FindTaskByID(task.TaskID)
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}

	fs := &fakeForgeSource{issues: []forge.Issue{
		{Number: 7, Title: "remote title", State: "open", UpdatedAt: task.UpdatedAt.Add(-1 * time.Hour)},
	}}
	p := &ForgePoller{Store: s, Forge: fs, ForgeRepo: "o/r"}

	p.tick(context.Background())

	after, err := s.FindTaskByID(task.TaskID)
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if after.Title != "local title" {
		t.Errorf("task.Title = %q, want local title preserved", after.Title)
	}
}

func TestForgePollerRemoteWinsAndEnqueuesSheetUpdate(t *testing.T) {
	s := setupTestStore(t)
	task := &models.Task{Title: "local title"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	if err := s.SetMappingForgeRef(task.TaskID, models.ForgeRef{Repo: "o/r", Number: 7}); err != nil {
		t.Fatalf("SetMappingForgeRef() error = %v", err)
	}

	fs := &fakeForgeSource{issues: []forge.Issue{
		{Number: 7, Title: "remote title", State: "open", UpdatedAt: time.Now().Add(1 * time.Hour)},
	}}
	p := &ForgePoller{Store: s, Forge: fs, ForgeRepo: "o/r"}

	p.tick(context.Background())

	after, err := s.FindTaskByID(task.TaskID)
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if after.Title != "remote title" {
		t.Errorf("task.Title = %q, want remote title applied", after.Title)
	}

	events, err := s.ListOutboxByStatus(models.OutboxPending, 100)
	if err != nil {
		t.Fatalf("ListOutboxByStatus() error = %v", err)
	}
	found := false
	for _, ev := range events {
		if ev.Kind == models.KindSheetUpdateRecord && ev.TaskID == task.TaskID {
			found = true
		}
	}
	if !found {
		t.Error("expected a sheetUpdateRecord event enqueued for the opposite direction")
	}
}

type fakeSheetSource struct {
	records []sheet.Record
}

func (f *fakeSheetSource) SearchRecords(ctx context.Context, appToken, tableID string, since time.Time) ([]sheet.Record, error) {
	return f.records, nil
}

func TestSheetPollerInsertsNewTaskFromUnmappedRecord(t *testing.T) {
	s := setupTestStore(t)
	entry := &models.SheetTableRegistryEntry{AppToken: "app1", TableID: "tbl1", IsDefault: true}
	if err := s.UpsertTableRegistryEntry(entry); err != nil {
		t.Fatalf("UpsertTableRegistryEntry() error = %v", err)
	}

	ss := &fakeSheetSource{records: []sheet.Record{
		{RecordID: "rec-1", Fields: map[string]interface{}{"Task Name": "from sheet", "Status": "To Do"}, UpdatedAt: time.Now()},
	}}
	p := &SheetPoller{Store: s, Sheet: ss}

	p.tick(context.Background())

	m, err := s.GetMappingBySheetRef("app1", "tbl1", "rec-1")
	if err != nil {
		t.Fatalf("GetMappingBySheetRef() error = %v", err)
	}
	task, err := s.FindTaskByID(m.TaskID)
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if task.Title != "from sheet" {
		t.Errorf("task.Title = %q, want %q", task.Title, "from sheet")
	}
}

func TestSheetPollerFlagsOutOfLatticeStatusAsConflict(t *testing.T) {
	s := setupTestStore(t)
	entry := &models.SheetTableRegistryEntry{AppToken: "app1", TableID: "tbl1", IsDefault: true}
	if err := s.UpsertTableRegistryEntry(entry); err != nil {
		t.Fatalf("UpsertTableRegistryEntry() error = %v", err)
	}

	ss := &fakeSheetSource{records: []sheet.Record{
		{RecordID: "rec-2", Fields: map[string]interface{}{"Task Name": "weird", "Status": "Something Unknown"}, UpdatedAt: time.Now()},
	}}
	p := &SheetPoller{Store: s, Sheet: ss}

	p.tick(context.Background())

	_, err := s.GetMappingBySheetRef("app1", "tbl1", "rec-2")
	if err == nil {
		t.Error("expected no mapping to be created for an out-of-lattice status record")
	}

	entries, err := s.ListAudit("sheetRecord", "rec-2", 10)
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected a conflict audit entry for the out-of-lattice record")
	}
}

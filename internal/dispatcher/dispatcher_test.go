package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"synctl/internal/gateway"
	"synctl/internal/gateway/forge"
	"synctl/internal/gateway/sheet"
	"synctl/internal/models"
	"synctl/internal/resolver"
	"synctl/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "synctl-dispatcher-test-*")
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

type fakeForge struct {
	nextNumber int
	created    int
	updated    int
	failWith   error
}

func (f *fakeForge) CreateIssue(ctx context.Context, title, body string, labels, assignees []string) (forge.Issue, error) {
	if f.failWith != nil {
		return forge.Issue{}, f.failWith
	}
	f.created++
	f.nextNumber++
	return forge.Issue{Number: f.nextNumber, Title: title, Body: body, State: "open"}, nil
}

func (f *fakeForge) UpdateIssue(ctx context.Context, number int, title, body, state, stateReason string, labels, assignees []string) (forge.Issue, error) {
	f.updated++
	return forge.Issue{Number: number, Title: title, State: state}, nil
}

func (f *fakeForge) CloseIssue(ctx context.Context, number int, stateReason string) (forge.Issue, error) {
	return forge.Issue{Number: number, State: "closed", StateReason: stateReason}, nil
}

func (f *fakeForge) GetIssue(ctx context.Context, number int) (forge.Issue, error) {
	return forge.Issue{Number: number, Title: "x", State: "open"}, nil
}

func (f *fakeForge) ListIssuesSince(ctx context.Context, since time.Time) ([]forge.Issue, error) {
	return nil, nil
}

type fakeSheetGateway struct {
	created int
}

func (f *fakeSheetGateway) CreateRecord(ctx context.Context, appToken, tableID string, fields map[string]interface{}) (sheet.Record, error) {
	f.created++
	return sheet.Record{RecordID: "rec-1", Fields: fields}, nil
}

func (f *fakeSheetGateway) UpdateRecord(ctx context.Context, appToken, tableID, recordID string, fields map[string]interface{}) (sheet.Record, error) {
	return sheet.Record{RecordID: recordID, Fields: fields}, nil
}

func (f *fakeSheetGateway) SearchRecords(ctx context.Context, appToken, tableID string, since time.Time) ([]sheet.Record, error) {
	return nil, nil
}

func (f *fakeSheetGateway) SendMessage(ctx context.Context, openID, text string) error {
	return nil
}

func newTestHandlers(t *testing.T, forgeGW ForgeGateway, sheetGW SheetGateway) (*Handlers, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	r := resolver.New(s, nil)
	return &Handlers{
		Store:     s,
		Forge:     forgeGW,
		Sheet:     sheetGW,
		Resolver:  r,
		ForgeRepo: "o/r",
	}, s
}

func TestHandleForgeCreateIssueSetsMappingRef(t *testing.T) {
	fg := &fakeForge{}
	h, s := newTestHandlers(t, fg, &fakeSheetGateway{})

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	ev := models.OutboxEvent{Kind: models.KindForgeCreateIssue, TaskID: task.TaskID, Payload: models.JSONPayload{"taskId": task.TaskID}}

	outcome := h.Handle(context.Background(), ev)
	if !outcome.Sent {
		t.Fatalf("outcome = %+v, want Sent", outcome)
	}
	if fg.created != 1 {
		t.Errorf("created = %d, want 1", fg.created)
	}

	m, err := s.GetMappingByTask(task.TaskID)
	if err != nil {
		t.Fatalf("GetMappingByTask() error = %v", err)
	}
	if !m.HasForgeRef() {
		t.Error("mapping has no forge ref after create")
	}
}

func TestHandleForgeCreateIssueIdempotentOnExistingRef(t *testing.T) {
	fg := &fakeForge{}
	h, s := newTestHandlers(t, fg, &fakeSheetGateway{})

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	if err := s.SetMappingForgeRef(task.TaskID, models.ForgeRef{Repo: "o/r", Number: 7}); err != nil {
		t.Fatalf("SetMappingForgeRef() error = %v", err)
	}

	ev := models.OutboxEvent{Kind: models.KindForgeCreateIssue, TaskID: task.TaskID, Payload: models.JSONPayload{"taskId": task.TaskID}}
	outcome := h.Handle(context.Background(), ev)
	if !outcome.Sent {
		t.Fatalf("outcome = %+v, want Sent", outcome)
	}
	if fg.created != 0 {
		t.Errorf("created = %d, want 0 (should have updated, not created)", fg.created)
	}
	if fg.updated != 1 {
		t.Errorf("updated = %d, want 1", fg.updated)
	}
}

func TestHandleForgeCreateIssueTransientOnRateLimit(t *testing.T) {
	fg := &fakeForge{failWith: fmt.Errorf("wrap: %w", gateway.ErrRateLimited)}
	h, s := newTestHandlers(t, fg, &fakeSheetGateway{})

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	ev := models.OutboxEvent{Kind: models.KindForgeCreateIssue, TaskID: task.TaskID, Payload: models.JSONPayload{"taskId": task.TaskID}}

	outcome := h.Handle(context.Background(), ev)
	if outcome.Sent {
		t.Fatal("outcome.Sent = true, want false on rate limit")
	}
	if !outcome.Transient {
		t.Errorf("outcome.Transient = false, want true on rate limit, err = %v", outcome.Err)
	}
}

func TestHandleForgeCreateIssuePermanentOnInvalidRequest(t *testing.T) {
	fg := &fakeForge{failWith: fmt.Errorf("wrap: %w", gateway.ErrInvalidRequest)}
	h, s := newTestHandlers(t, fg, &fakeSheetGateway{})

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	ev := models.OutboxEvent{Kind: models.KindForgeCreateIssue, TaskID: task.TaskID, Payload: models.JSONPayload{"taskId": task.TaskID}}

	outcome := h.Handle(context.Background(), ev)
	if outcome.Sent || outcome.Transient {
		t.Fatalf("outcome = %+v, want permanent failure", outcome)
	}
}

func TestHandleSheetCreateRecordUsesDefaultTable(t *testing.T) {
	sg := &fakeSheetGateway{}
	h, s := newTestHandlers(t, &fakeForge{}, sg)

	if err := s.UpsertTableRegistryEntry(&models.SheetTableRegistryEntry{
		AppToken: "app1", TableID: "tbl1", IsDefault: true,
	}); err != nil {
		t.Fatalf("UpsertTableRegistryEntry() error = %v", err)
	}

	task := &models.Task{Title: "T1"}
	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}
	ev := models.OutboxEvent{Kind: models.KindSheetCreateRecord, TaskID: task.TaskID, Payload: models.JSONPayload{"taskId": task.TaskID}}

	outcome := h.Handle(context.Background(), ev)
	if !outcome.Sent {
		t.Fatalf("outcome = %+v, want Sent", outcome)
	}
	if sg.created != 1 {
		t.Errorf("created = %d, want 1", sg.created)
	}
}

func TestBackoffIsBoundedAndGrows(t *testing.T) {
	d1 := Backoff(1)
	d5 := Backoff(5)
	if d1 < 0 || d1 > backoffBase {
		t.Errorf("Backoff(1) = %v, want within [0, %v]", d1, backoffBase)
	}
	if d5 < 0 || d5 > backoffCap {
		t.Errorf("Backoff(5) = %v, want within [0, %v]", d5, backoffCap)
	}
	d20 := Backoff(20)
	if d20 > backoffCap {
		t.Errorf("Backoff(20) = %v, want capped at %v", d20, backoffCap)
	}
}

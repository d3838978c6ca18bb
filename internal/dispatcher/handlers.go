package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"synctl/internal/gateway"
	"synctl/internal/gateway/forge"
	"synctl/internal/gateway/sheet"
	"synctl/internal/mapper"
	"synctl/internal/models"
	"synctl/internal/resolver"
	"synctl/internal/store"
)

// ForgeGateway is the subset of forge.Client a handler calls.
type ForgeGateway interface {
	CreateIssue(ctx context.Context, title, body string, labels, assignees []string) (forge.Issue, error)
	UpdateIssue(ctx context.Context, number int, title, body, state, stateReason string, labels, assignees []string) (forge.Issue, error)
	CloseIssue(ctx context.Context, number int, stateReason string) (forge.Issue, error)
	GetIssue(ctx context.Context, number int) (forge.Issue, error)
	ListIssuesSince(ctx context.Context, since time.Time) ([]forge.Issue, error)
}

// SheetGateway is the subset of sheet.Client a handler calls.
type SheetGateway interface {
	CreateRecord(ctx context.Context, appToken, tableID string, fields map[string]interface{}) (sheet.Record, error)
	UpdateRecord(ctx context.Context, appToken, tableID, recordID string, fields map[string]interface{}) (sheet.Record, error)
	SearchRecords(ctx context.Context, appToken, tableID string, since time.Time) ([]sheet.Record, error)
	SendMessage(ctx context.Context, openID, text string) error
}

// Handlers dispatches each outbox event kind, sharing the Store,
// gateways, and Identity Resolver every kind needs.
type Handlers struct {
	Store    *store.Store
	Forge    ForgeGateway
	Sheet    SheetGateway
	Resolver *resolver.Resolver

	// ForgeRepo is the single configured "owner/repo" this synctl
	// instance targets; forgeIssueRef only carries a repo
	// string per mapping, but this system configures one repo globally.
	ForgeRepo string

	// OperatorMemberID is who dead-letter and conflict notifyMember
	// events are addressed to.
	OperatorMemberID string
}

// Handle dispatches ev to its kind's handler.
func (h *Handlers) Handle(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	switch ev.Kind {
	case models.KindForgeCreateIssue:
		return h.handleForgeCreateIssue(ctx, ev)
	case models.KindForgeUpdateIssue:
		return h.handleForgeUpdateIssue(ctx, ev)
	case models.KindForgeCloseIssue:
		return h.handleForgeCloseIssue(ctx, ev)
	case models.KindSheetCreateRecord:
		return h.handleSheetCreateRecord(ctx, ev)
	case models.KindSheetUpdateRecord:
		return h.handleSheetUpdateRecord(ctx, ev)
	case models.KindConvertForgeToSheet:
		return h.handleConvertForgeToSheet(ctx, ev)
	case models.KindConvertSheetToForge:
		return h.handleConvertSheetToForge(ctx, ev)
	case models.KindNotifyMember:
		return h.handleNotifyMember(ctx, ev)
	default:
		return store.OutboxOutcome{Err: fmt.Errorf("unknown outbox event kind %q", ev.Kind)}
	}
}

// classifyOutcome turns a gateway error into an OutboxOutcome, computing
// backoff for transient failures from the event's own attempt count.
func classifyOutcome(ev models.OutboxEvent, err error) store.OutboxOutcome {
	if err == nil {
		return store.OutboxOutcome{Sent: true}
	}
	if gateway.IsRetryable(err) {
		return store.OutboxOutcome{
			Transient: true,
			NotBefore: timeNowAdd(Backoff(ev.Attempts + 1)),
			Err:       err,
		}
	}
	return store.OutboxOutcome{Err: err}
}

// payloadString reads a string field from an outbox event's payload.
func payloadString(payload models.JSONPayload, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// assigneeFor resolves a Task's assignee into the mapper's Assignee
// shape, tolerating a task with no assignee or a member missing one
// side's identity.
func (h *Handlers) assigneeFor(ctx context.Context, task *models.Task) (*mapper.Assignee, error) {
	if task.AssigneeMemberID == "" {
		return nil, nil
	}
	member, err := h.Store.FindMemberByID(task.AssigneeMemberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	forgeUsername, sheetOpenID, err := h.Resolver.Resolve(ctx, member.Email)
	if err != nil {
		return nil, err
	}
	return &mapper.Assignee{ForgeUsername: forgeUsername, SheetOpenID: sheetOpenID}, nil
}

func (h *Handlers) handleForgeCreateIssue(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	taskID := payloadString(ev.Payload, "taskId")
	task, err := h.Store.FindTaskByID(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: fmt.Errorf("load task %s: %w", taskID, err)}
	}

	m, err := h.Store.GetMappingByTask(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if m.HasForgeRef() {
		// Idempotency precheck: already created by a prior attempt that
		// crashed before recording success. Fall through to update.
		return h.updateForgeIssue(ctx, ev, task, m)
	}

	existing, found, err := h.findExistingForgeIssue(ctx, taskID)
	if err != nil {
		return classifyOutcome(ev, err)
	}
	if found {
		// A prior attempt crashed after CreateIssue succeeded but before
		// the mapping was persisted; the retried event finds its own
		// issue by title instead of creating a second one.
		if err := h.Store.SetMappingForgeRef(taskID, models.ForgeRef{Repo: h.ForgeRepo, Number: existing.Number}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		if err := h.Store.AppendAudit(models.AuditEntry{
			Direction: models.DirectionPush, Subject: "task", SubjectID: taskID,
			Status: "forgeIssueReattached", Message: fmt.Sprintf("issue #%d", existing.Number),
		}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		return store.OutboxOutcome{Sent: true}
	}

	assignee, err := h.assigneeFor(ctx, task)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	payload := mapper.TaskToForgeIssue(task, assignee)

	issue, err := h.Forge.CreateIssue(ctx, payload.Title, payload.Body, payload.Labels, payload.Assignees)
	if err != nil {
		return classifyOutcome(ev, err)
	}

	if err := h.Store.SetMappingForgeRef(taskID, models.ForgeRef{Repo: h.ForgeRepo, Number: issue.Number}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if err := h.Store.AppendAudit(models.AuditEntry{
		Direction: models.DirectionPush, Subject: "task", SubjectID: taskID,
		Status: "forgeIssueCreated", Message: fmt.Sprintf("issue #%d", issue.Number),
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

// findExistingForgeIssue searches for an issue already carrying taskId's
// [AUTO][task:<id>] title prefix, the idempotency pre-check that keeps a
// retried create from opening a second issue.
func (h *Handlers) findExistingForgeIssue(ctx context.Context, taskID string) (forge.Issue, bool, error) {
	issues, err := h.Forge.ListIssuesSince(ctx, time.Time{})
	if err != nil {
		return forge.Issue{}, false, err
	}
	for _, issue := range issues {
		if _, id := mapper.StripForgeTitlePrefix(issue.Title); id == taskID {
			return issue, true, nil
		}
	}
	return forge.Issue{}, false, nil
}

func (h *Handlers) handleForgeUpdateIssue(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	taskID := payloadString(ev.Payload, "taskId")
	task, err := h.Store.FindTaskByID(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: fmt.Errorf("load task %s: %w", taskID, err)}
	}
	m, err := h.Store.GetMappingByTask(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if !m.HasForgeRef() {
		// Nothing to update yet; treat as create.
		return h.handleForgeCreateIssue(ctx, ev)
	}
	return h.updateForgeIssue(ctx, ev, task, m)
}

func (h *Handlers) updateForgeIssue(ctx context.Context, ev models.OutboxEvent, task *models.Task, m *models.Mapping) store.OutboxOutcome {
	assignee, err := h.assigneeFor(ctx, task)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	payload := mapper.TaskToForgeIssue(task, assignee)

	_, err = h.Forge.UpdateIssue(ctx, m.ForgeNumber, payload.Title, payload.Body, payload.State, payload.StateReason, payload.Labels, payload.Assignees)
	if err != nil {
		return classifyOutcome(ev, err)
	}
	if err := h.Store.AppendAudit(models.AuditEntry{
		Direction: models.DirectionPush, Subject: "task", SubjectID: task.TaskID,
		Status: "forgeIssueUpdated",
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

func (h *Handlers) handleForgeCloseIssue(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	taskID := payloadString(ev.Payload, "taskId")
	reason := payloadString(ev.Payload, "reason")
	task, err := h.Store.FindTaskByID(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: fmt.Errorf("load task %s: %w", taskID, err)}
	}
	m, err := h.Store.GetMappingByTask(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if !m.HasForgeRef() {
		return store.OutboxOutcome{Err: fmt.Errorf("close issue for task %s: no forge ref bound yet", taskID)}
	}
	if reason == "" {
		reason = mapper.InternalStatusToForge(task.Status).StateReason
	}

	if _, err := h.Forge.CloseIssue(ctx, m.ForgeNumber, reason); err != nil {
		return classifyOutcome(ev, err)
	}
	if err := h.Store.AppendAudit(models.AuditEntry{
		Direction: models.DirectionPush, Subject: "task", SubjectID: taskID,
		Status: "forgeIssueClosed", Message: reason,
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

func (h *Handlers) handleSheetCreateRecord(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	taskID := payloadString(ev.Payload, "taskId")
	task, err := h.Store.FindTaskByID(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: fmt.Errorf("load task %s: %w", taskID, err)}
	}

	tableRef := payloadString(ev.Payload, "tableRef")
	if tableRef == "" {
		tableRef = task.TargetTable
	}
	entry, err := h.Store.ResolveTargetTable(tableRef)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}

	m, err := h.Store.GetMappingByTask(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if m.HasSheetRef() {
		return h.updateSheetRecord(ctx, ev, task, m, entry)
	}

	existingRec, found, err := h.findExistingSheetRecord(ctx, entry, taskID)
	if err != nil {
		return classifyOutcome(ev, err)
	}
	if found {
		// A prior attempt crashed after CreateRecord succeeded but before
		// the mapping was persisted; the retried event finds its own
		// record by taskId instead of creating a second one.
		if err := h.Store.SetMappingSheetRef(taskID, models.SheetRef{
			AppToken: entry.AppToken, TableID: entry.TableID, RecordID: existingRec.RecordID,
		}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		if err := h.Store.AppendAudit(models.AuditEntry{
			Direction: models.DirectionPush, Subject: "task", SubjectID: taskID,
			Status: "sheetRecordReattached", Message: existingRec.RecordID,
		}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		return store.OutboxOutcome{Sent: true}
	}

	assignee, err := h.assigneeFor(ctx, task)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	payload := mapper.TaskToSheetRecord(task, entry, assignee)

	rec, err := h.Sheet.CreateRecord(ctx, entry.AppToken, entry.TableID, payload.Fields)
	if err != nil {
		return classifyOutcome(ev, err)
	}

	if err := h.Store.SetMappingSheetRef(taskID, models.SheetRef{
		AppToken: entry.AppToken, TableID: entry.TableID, RecordID: rec.RecordID,
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if err := h.Store.AppendAudit(models.AuditEntry{
		Direction: models.DirectionPush, Subject: "task", SubjectID: taskID,
		Status: "sheetRecordCreated", Message: rec.RecordID,
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

// findExistingSheetRecord searches for a record already carrying taskId
// in its deterministic-key column, the idempotency pre-check that keeps
// a retried create from writing a second record.
func (h *Handlers) findExistingSheetRecord(ctx context.Context, entry *models.SheetTableRegistryEntry, taskID string) (sheet.Record, bool, error) {
	records, err := h.Sheet.SearchRecords(ctx, entry.AppToken, entry.TableID, time.Time{})
	if err != nil {
		return sheet.Record{}, false, err
	}
	taskIDCol := mapper.TaskIDFieldName(entry)
	for _, rec := range records {
		if v, ok := rec.Fields[taskIDCol].(string); ok && v == taskID {
			return rec, true, nil
		}
	}
	return sheet.Record{}, false, nil
}

func (h *Handlers) handleSheetUpdateRecord(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	taskID := payloadString(ev.Payload, "taskId")
	task, err := h.Store.FindTaskByID(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: fmt.Errorf("load task %s: %w", taskID, err)}
	}
	m, err := h.Store.GetMappingByTask(taskID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	if !m.HasSheetRef() {
		return h.handleSheetCreateRecord(ctx, ev)
	}
	entry, err := h.Store.GetTableRegistryEntry(m.SheetAppToken, m.SheetTableID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return h.updateSheetRecord(ctx, ev, task, m, entry)
}

func (h *Handlers) updateSheetRecord(ctx context.Context, ev models.OutboxEvent, task *models.Task, m *models.Mapping, entry *models.SheetTableRegistryEntry) store.OutboxOutcome {
	assignee, err := h.assigneeFor(ctx, task)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	payload := mapper.TaskToSheetRecord(task, entry, assignee)

	if _, err := h.Sheet.UpdateRecord(ctx, entry.AppToken, entry.TableID, m.SheetRecordID, payload.Fields); err != nil {
		return classifyOutcome(ev, err)
	}
	if err := h.Store.AppendAudit(models.AuditEntry{
		Direction: models.DirectionPush, Subject: "task", SubjectID: task.TaskID,
		Status: "sheetRecordUpdated",
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

func (h *Handlers) handleConvertForgeToSheet(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	forgeIssueRef := payloadString(ev.Payload, "forgeIssueRef")
	tableRef := payloadString(ev.Payload, "tableRef")

	number, err := parseIssueNumber(forgeIssueRef)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}
	issue, err := h.Forge.GetIssue(ctx, number)
	if err != nil {
		return classifyOutcome(ev, err)
	}

	existing, err := h.Store.GetMappingByForgeRef(h.ForgeRepo, number)
	var task *models.Task
	if err == nil {
		task, err = h.Store.FindTaskByID(existing.TaskID)
		if err != nil {
			return store.OutboxOutcome{Err: err}
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.OutboxOutcome{Err: err}
	}

	newTask := mapper.ForgeIssueToTask(mapper.ForgeIssueInput{
		Repo: h.ForgeRepo, Number: issue.Number, Title: issue.Title, Body: issue.Body,
		State: issue.State, StateReason: issue.StateReason, Labels: issue.Labels,
		UpdatedAt: issue.UpdatedAt,
	}, task)
	newTask.TargetTable = tableRef

	if task == nil {
		if err := h.Store.UpsertTask(newTask); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		if err := h.Store.SetMappingForgeRef(newTask.TaskID, models.ForgeRef{Repo: h.ForgeRepo, Number: number}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
	} else {
		newTask.TaskID = task.TaskID
		if err := h.Store.UpsertTask(newTask); err != nil {
			return store.OutboxOutcome{Err: err}
		}
	}

	if _, err := h.Store.EnqueueOutbox(models.KindSheetCreateRecord, newTask.TaskID, models.JSONPayload{
		"taskId": newTask.TaskID, "tableRef": tableRef,
	}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

func (h *Handlers) handleConvertSheetToForge(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	sheetRecordRef := payloadString(ev.Payload, "sheetRecordRef")
	appToken, tableID, recordID, err := parseSheetRecordRef(sheetRecordRef)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}

	entry, err := h.Store.GetTableRegistryEntry(appToken, tableID)
	if err != nil {
		return store.OutboxOutcome{Err: err}
	}

	existing, err := h.Store.GetMappingBySheetRef(appToken, tableID, recordID)
	var task *models.Task
	if err == nil {
		task, err = h.Store.FindTaskByID(existing.TaskID)
		if err != nil {
			return store.OutboxOutcome{Err: err}
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.OutboxOutcome{Err: err}
	}

	rec, err := h.sheetSearchOne(ctx, appToken, tableID, recordID)
	if err != nil {
		return classifyOutcome(ev, err)
	}

	newTask, ok := mapper.SheetRecordToTask(mapper.SheetRecordInput{RecordID: rec.RecordID, Fields: rec.Fields, UpdatedAt: rec.UpdatedAt}, entry, task)
	if !ok {
		if err := h.Store.AppendAudit(models.AuditEntry{
			Direction: models.DirectionPull, Subject: "task", SubjectID: sheetRecordRef,
			Status: "conflict", Message: "status value outside the lattice",
		}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		return store.OutboxOutcome{Err: fmt.Errorf("sheet record %s has an unrecognized status", sheetRecordRef)}
	}

	if task == nil {
		if err := h.Store.UpsertTask(newTask); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		if err := h.Store.SetMappingSheetRef(newTask.TaskID, models.SheetRef{AppToken: appToken, TableID: tableID, RecordID: recordID}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
	} else {
		newTask.TaskID = task.TaskID
		if err := h.Store.UpsertTask(newTask); err != nil {
			return store.OutboxOutcome{Err: err}
		}
	}

	if _, err := h.Store.EnqueueOutbox(models.KindForgeCreateIssue, newTask.TaskID, models.JSONPayload{"taskId": newTask.TaskID}); err != nil {
		return store.OutboxOutcome{Err: err}
	}
	return store.OutboxOutcome{Sent: true}
}

func (h *Handlers) handleNotifyMember(ctx context.Context, ev models.OutboxEvent) store.OutboxOutcome {
	memberID := payloadString(ev.Payload, "memberId")
	message := payloadString(ev.Payload, "message")

	member, err := h.Store.FindMemberByID(memberID)
	if err != nil {
		return store.OutboxOutcome{Err: fmt.Errorf("notify member %s: %w", memberID, err)}
	}
	if member.SheetOpenID == "" {
		// Nothing addressable to deliver to; log and treat as sent rather
		// than retry forever.
		if err := h.Store.AppendAudit(models.AuditEntry{
			Direction: models.DirectionPush, Subject: "member", SubjectID: memberID,
			Status: "notifySkipped", Message: "no sheetOpenId on file",
		}); err != nil {
			return store.OutboxOutcome{Err: err}
		}
		return store.OutboxOutcome{Sent: true}
	}

	if err := h.Sheet.SendMessage(ctx, member.SheetOpenID, message); err != nil {
		return classifyOutcome(ev, err)
	}
	return store.OutboxOutcome{Sent: true}
}

// sheetSearchOne retrieves a single record by id via SearchRecords, the
// gateway surface having no single-record getter (names
// SearchRecords, not getRecord).
func (h *Handlers) sheetSearchOne(ctx context.Context, appToken, tableID, recordID string) (sheet.Record, error) {
	records, err := h.Sheet.SearchRecords(ctx, appToken, tableID, time.Time{})
	if err != nil {
		return sheet.Record{}, err
	}
	for _, r := range records {
		if r.RecordID == recordID {
			return r, nil
		}
	}
	return sheet.Record{}, fmt.Errorf("%w: record %s in table %s/%s", gateway.ErrNotFound, recordID, appToken, tableID)
}

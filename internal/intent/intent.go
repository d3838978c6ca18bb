// Package intent is the only surface the frontend talks to: every
// mutation commits locally and enqueues outbox events for the
// Dispatcher to carry out later. Service never touches a Gateway —
// central architectural constraint, which is what makes
// user-visible success mean "committed locally," not "synced."
package intent

import (
	"errors"
	"fmt"

	"synctl/internal/models"
	"synctl/internal/store"
)

// ErrValidation is wrapped by Intent API rejections caught before commit
// (duplicate email, unknown table, empty title, invalid enum value).
var ErrValidation = errors.New("intent: validation failed")

// Service is the Intent API: createTask/updateTask/closeTask/convert/
// list/getMemberWork plus Member CRUD, all backed by one Store.
type Service struct {
	Store *store.Store
}

// New constructs a Service over s.
func New(s *store.Store) *Service {
	return &Service{Store: s}
}

// CreateTaskParams is createTask's argument bundle.
type CreateTaskParams struct {
	Title         string
	Body          string
	AssigneeEmail string
	Priority      string
	Labels        []string
	TargetTable   string
	DueDate       string
	// AlsoConvert additionally pushes the new task to the forge side
	// immediately; by default a new task is only pushed to its sheet
	// binding (the spreadsheet is the system of record every task gets,
	// forge is opt-in open design space around
	// alsoConvert — see DESIGN.md).
	AlsoConvert bool
}

// CreateTask inserts a Task and enqueues its initial outbox event(s) in
// one transaction, returning the new taskId.
func (svc *Service) CreateTask(p CreateTaskParams) (string, error) {
	if p.Title == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	priority := p.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, priority)
	}

	var assigneeMemberID string
	if p.AssigneeEmail != "" {
		member, err := svc.Store.FindMemberByEmail(p.AssigneeEmail)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("%w: no member with email %q", ErrValidation, p.AssigneeEmail)
			}
			return "", err
		}
		assigneeMemberID = member.MemberID
	}

	task := &models.Task{
		Title:            p.Title,
		Body:             p.Body,
		Priority:         priority,
		AssigneeMemberID: assigneeMemberID,
		Labels:           models.StringSlice(p.Labels),
		TargetTable:      p.TargetTable,
		DueDate:          p.DueDate,
	}

	err := svc.Store.Transaction(func(tx *store.Store) error {
		if err := tx.UpsertTask(task); err != nil {
			return err
		}
		if _, err := tx.EnqueueOutbox(models.KindSheetCreateRecord, task.TaskID, models.JSONPayload{
			"taskId": task.TaskID, "tableRef": p.TargetTable,
		}); err != nil {
			return err
		}
		if p.AlsoConvert {
			if _, err := tx.EnqueueOutbox(models.KindForgeCreateIssue, task.TaskID, models.JSONPayload{
				"taskId": task.TaskID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return task.TaskID, nil
}

// TaskPatch is updateTask's partial-update shape; a nil field is left
// unchanged. Which fields are non-nil determines which outbox events
// get enqueued.
type TaskPatch struct {
	Title         *string
	Body          *string
	Status        *string
	AssigneeEmail *string
	Labels        *[]string
	Priority      *string
	DueDate       *string
	Progress      *int
}

// UpdateTask applies patch to taskId, snapshotting the prior state to
// the audit log, and enqueues forgeUpdateIssue and/or sheetUpdateRecord
// depending on the task's existing bindings.
func (svc *Service) UpdateTask(taskID string, patch TaskPatch) (*models.Task, error) {
	var assigneeMemberID *string
	if patch.AssigneeEmail != nil {
		if *patch.AssigneeEmail == "" {
			empty := ""
			assigneeMemberID = &empty
		} else {
			member, err := svc.Store.FindMemberByEmail(*patch.AssigneeEmail)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("%w: no member with email %q", ErrValidation, *patch.AssigneeEmail)
				}
				return nil, err
			}
			assigneeMemberID = &member.MemberID
		}
	}
	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *patch.Status)
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return nil, fmt.Errorf("%w: invalid priority %q", ErrValidation, *patch.Priority)
	}

	var task *models.Task
	err := svc.Store.Transaction(func(tx *store.Store) error {
		t, err := tx.UpdateTask(taskID, func(t *models.Task) error {
			if patch.Title != nil {
				t.Title = *patch.Title
			}
			if patch.Body != nil {
				t.Body = *patch.Body
			}
			if patch.Status != nil {
				t.Status = *patch.Status
			}
			if assigneeMemberID != nil {
				t.AssigneeMemberID = *assigneeMemberID
			}
			if patch.Labels != nil {
				t.Labels = models.StringSlice(*patch.Labels)
			}
			if patch.Priority != nil {
				t.Priority = *patch.Priority
			}
			if patch.DueDate != nil {
				t.DueDate = *patch.DueDate
			}
			if patch.Progress != nil {
				t.Progress = models.ClampProgress(*patch.Progress)
			}
			return nil
		})
		if err != nil {
			return err
		}
		task = t

		m, err := tx.GetMappingByTask(taskID)
		if err != nil {
			return err
		}
		if err := tx.MarkMappingSyncStatus(taskID, models.SyncPending); err != nil {
			return err
		}
		if m.HasForgeRef() {
			if _, err := tx.EnqueueOutbox(models.KindForgeUpdateIssue, taskID, models.JSONPayload{"taskId": taskID}); err != nil {
				return err
			}
		}
		if m.HasSheetRef() {
			if _, err := tx.EnqueueOutbox(models.KindSheetUpdateRecord, taskID, models.JSONPayload{"taskId": taskID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CloseTask sets status to a terminal lattice value, records reason in
// the audit log, and enqueues forgeCloseIssue and sheetUpdateRecord.
func (svc *Service) CloseTask(taskID, status, reason string) (*models.Task, error) {
	if status != models.StatusDone && status != models.StatusCancelled {
		return nil, fmt.Errorf("%w: closeTask status must be Done or Cancelled, got %q", ErrValidation, status)
	}

	var task *models.Task
	err := svc.Store.Transaction(func(tx *store.Store) error {
		t, err := tx.UpdateTask(taskID, func(t *models.Task) error {
			t.Close(status)
			return nil
		})
		if err != nil {
			return err
		}
		task = t

		if err := tx.AppendAudit(models.AuditEntry{
			Direction: models.DirectionLocal, Subject: "task", SubjectID: taskID,
			Status: "closed", Message: reason,
		}); err != nil {
			return err
		}

		m, err := tx.GetMappingByTask(taskID)
		if err != nil {
			return err
		}
		if err := tx.MarkMappingSyncStatus(taskID, models.SyncPending); err != nil {
			return err
		}
		if m.HasForgeRef() {
			if _, err := tx.EnqueueOutbox(models.KindForgeCloseIssue, taskID, models.JSONPayload{"taskId": taskID, "reason": reason}); err != nil {
				return err
			}
		}
		if m.HasSheetRef() {
			if _, err := tx.EnqueueOutbox(models.KindSheetUpdateRecord, taskID, models.JSONPayload{"taskId": taskID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ConvertForgeToSheet enqueues a convertForgeToSheet event; the
// Dispatcher's handler does the actual pull-and-bind work.
func (svc *Service) ConvertForgeToSheet(forgeIssueRef, tableRef string) error {
	if forgeIssueRef == "" {
		return fmt.Errorf("%w: forgeIssueRef is required", ErrValidation)
	}
	return svc.Store.Transaction(func(tx *store.Store) error {
		_, err := tx.EnqueueOutbox(models.KindConvertForgeToSheet, "", models.JSONPayload{
			"forgeIssueRef": forgeIssueRef, "tableRef": tableRef,
		})
		return err
	})
}

// ConvertSheetToForge enqueues a convertSheetToForge event.
func (svc *Service) ConvertSheetToForge(sheetRecordRef string) error {
	if sheetRecordRef == "" {
		return fmt.Errorf("%w: sheetRecordRef is required", ErrValidation)
	}
	return svc.Store.Transaction(func(tx *store.Store) error {
		_, err := tx.EnqueueOutbox(models.KindConvertSheetToForge, "", models.JSONPayload{
			"sheetRecordRef": sheetRecordRef,
		})
		return err
	})
}

// ListTasks is a read-only passthrough to the Store's filter.
func (svc *Service) ListTasks(filter store.TaskFilter) ([]models.Task, error) {
	return svc.Store.ListTasks(filter)
}

// MemberWork aggregates a Member's assigned tasks and their current
// sync bindings, for getMemberWork.
type MemberWork struct {
	Member *models.Member
	Tasks  []TaskWithMapping
}

// TaskWithMapping pairs a Task with its Mapping, since the frontend
// needs syncStatus and external refs alongside the task fields.
type TaskWithMapping struct {
	Task    models.Task
	Mapping *models.Mapping
}

// GetMemberWork resolves memberIdentifier (an email or a memberId) to a
// Member and aggregates their assigned work across both bindings.
func (svc *Service) GetMemberWork(memberIdentifier string) (*MemberWork, error) {
	member, err := svc.Store.FindMemberByID(memberIdentifier)
	if errors.Is(err, store.ErrNotFound) {
		member, err = svc.Store.FindMemberByEmail(memberIdentifier)
	}
	if err != nil {
		return nil, err
	}

	tasks, err := svc.Store.ListTasks(store.TaskFilter{AssigneeMemberID: member.MemberID})
	if err != nil {
		return nil, err
	}

	work := &MemberWork{Member: member, Tasks: make([]TaskWithMapping, 0, len(tasks))}
	for _, t := range tasks {
		m, err := svc.Store.GetMappingByTask(t.TaskID)
		if err != nil {
			return nil, err
		}
		work.Tasks = append(work.Tasks, TaskWithMapping{Task: t, Mapping: m})
	}
	return work, nil
}

// CreateMemberParams is createMember's argument bundle.
type CreateMemberParams struct {
	Name          string
	Email         string
	Role          string
	Team          string
	Position      string
	ForgeUsername string
	SheetOpenID   string
}

// CreateMember inserts a Member, rejecting a duplicate email before
// commit.
func (svc *Service) CreateMember(p CreateMemberParams) (*models.Member, error) {
	if p.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	role := p.Role
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}
	if _, err := svc.Store.FindMemberByEmail(p.Email); err == nil {
		return nil, fmt.Errorf("%w: email %q already registered", ErrValidation, p.Email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	member := &models.Member{
		Name: p.Name, Email: p.Email, Role: role, Team: p.Team, Position: p.Position,
		ForgeUsername: p.ForgeUsername, SheetOpenID: p.SheetOpenID,
	}
	err := svc.Store.Transaction(func(tx *store.Store) error {
		return tx.UpsertMember(member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// MemberPatch is updateMember's partial-update shape.
type MemberPatch struct {
	Name          *string
	Role          *string
	Team          *string
	Position      *string
	ForgeUsername *string
	SheetOpenID   *string
}

// UpdateMember applies patch to memberID.
func (svc *Service) UpdateMember(memberID string, patch MemberPatch) (*models.Member, error) {
	if patch.Role != nil && !models.ValidRole(*patch.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, *patch.Role)
	}
	var member *models.Member
	err := svc.Store.Transaction(func(tx *store.Store) error {
		m, err := tx.UpdateMember(memberID, func(m *models.Member) error {
			if patch.Name != nil {
				m.Name = *patch.Name
			}
			if patch.Role != nil {
				m.Role = *patch.Role
			}
			if patch.Team != nil {
				m.Team = *patch.Team
			}
			if patch.Position != nil {
				m.Position = *patch.Position
			}
			if patch.ForgeUsername != nil {
				m.ForgeUsername = *patch.ForgeUsername
			}
			if patch.SheetOpenID != nil {
				m.SheetOpenID = *patch.SheetOpenID
			}
			return nil
		})
		member = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// DeactivateMember soft-deactivates a member, preserving the row for
// the email-uniqueness-for-all-time invariant.
func (svc *Service) DeactivateMember(memberID string) (*models.Member, error) {
	var member *models.Member
	err := svc.Store.Transaction(func(tx *store.Store) error {
		m, err := tx.UpdateMember(memberID, func(m *models.Member) error {
			m.Deactivate()
			return nil
		})
		member = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// ListMembers is a read-only passthrough to the Store's filter.
func (svc *Service) ListMembers(filter store.MemberFilter) ([]models.Member, error) {
	return svc.Store.ListMembers(filter)
}

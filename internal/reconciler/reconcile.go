package reconciler

import (
	"errors"
	"fmt"
	"time"

	"synctl/internal/gateway/forge"
	"synctl/internal/gateway/sheet"
	"synctl/internal/mapper"
	"synctl/internal/models"
	"synctl/internal/store"
)

func parseCursor(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func formatCursor(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// reconcileForgeIssue applies step 3 to a single remote
// issue: locate the mapping, decide local-wins/remote-wins/conflict,
// and upsert the task and opposite-direction outbox event in one
// transaction when the remote side wins.
func reconcileForgeIssue(s *store.Store, repo string, issue forge.Issue, operatorMemberID string) error {
	m, err := s.GetMappingByForgeRef(repo, issue.Number)
	if errors.Is(err, store.ErrNotFound) {
		return s.Transaction(func(tx *store.Store) error {
			newTask := mapper.ForgeIssueToTask(toForgeIssueInput(repo, issue), nil)
			if err := tx.UpsertTask(newTask); err != nil {
				return err
			}
			if err := tx.SetMappingForgeRef(newTask.TaskID, models.ForgeRef{Repo: repo, Number: issue.Number}); err != nil {
				return err
			}
			return tx.AppendAudit(models.AuditEntry{
				Direction: models.DirectionPull, Subject: "task", SubjectID: newTask.TaskID,
				Status: "forgeIssuePulled", Message: fmt.Sprintf("new task from issue #%d", issue.Number),
			})
		})
	}
	if err != nil {
		return err
	}

	task, err := s.FindTaskByID(m.TaskID)
	if err != nil {
		return err
	}

	if task.UpdatedAt.After(issue.UpdatedAt) {
		// Local wins silently; the local change is already queued for
		// dispatch by whatever mutated it.
		return nil
	}

	newTask := mapper.ForgeIssueToTask(toForgeIssueInput(repo, issue), task)
	// m.SyncStatus==pending means the local side has an edit still
	// waiting to be dispatched: both sides changed since the last sync,
	// which is the actual conflict case (not just "remote moved on").
	semanticConflict := m.SyncStatus == models.SyncPending && tasksDifferSemantically(task, newTask)

	return s.Transaction(func(tx *store.Store) error {
		newTask.TaskID = task.TaskID
		if err := tx.UpsertTask(newTask); err != nil {
			return err
		}
		if semanticConflict {
			if err := tx.MarkMappingSyncStatus(task.TaskID, models.SyncConflict); err != nil {
				return err
			}
			if err := tx.AppendAudit(models.AuditEntry{
				Direction: models.DirectionPull, Subject: "task", SubjectID: task.TaskID,
				Status: "conflict", Message: fmt.Sprintf("forge issue #%d and local task both changed; last-write-wins applied", issue.Number),
			}); err != nil {
				return err
			}
			if operatorMemberID != "" {
				if _, err := tx.EnqueueOutbox(models.KindNotifyMember, task.TaskID, models.JSONPayload{
					"memberId": operatorMemberID,
					"message":  fmt.Sprintf("task %s conflicted between forge and local edits; forge's value was kept", task.TaskID),
				}); err != nil {
					return err
				}
			}
			return nil
		}
		_, err := tx.EnqueueOutbox(models.KindSheetUpdateRecord, task.TaskID, models.JSONPayload{"taskId": task.TaskID})
		return err
	})
}

// reconcileSheetRecord mirrors reconcileForgeIssue for a sheet record.
func reconcileSheetRecord(s *store.Store, entry *models.SheetTableRegistryEntry, rec sheet.Record, operatorMemberID string) error {
	m, err := s.GetMappingBySheetRef(entry.AppToken, entry.TableID, rec.RecordID)
	if errors.Is(err, store.ErrNotFound) {
		newTask, ok := mapper.SheetRecordToTask(toSheetRecordInput(rec), entry, nil)
		if !ok {
			return s.AppendAudit(models.AuditEntry{
				Direction: models.DirectionPull, Subject: "sheetRecord", SubjectID: rec.RecordID,
				Status: "conflict", Message: "new record has a status value outside the lattice",
			})
		}
		newTask.TargetTable = entry.AppToken + "/" + entry.TableID
		return s.Transaction(func(tx *store.Store) error {
			if err := tx.UpsertTask(newTask); err != nil {
				return err
			}
			if err := tx.SetMappingSheetRef(newTask.TaskID, models.SheetRef{AppToken: entry.AppToken, TableID: entry.TableID, RecordID: rec.RecordID}); err != nil {
				return err
			}
			return tx.AppendAudit(models.AuditEntry{
				Direction: models.DirectionPull, Subject: "task", SubjectID: newTask.TaskID,
				Status: "sheetRecordPulled", Message: "new task from record " + rec.RecordID,
			})
		})
	}
	if err != nil {
		return err
	}

	task, err := s.FindTaskByID(m.TaskID)
	if err != nil {
		return err
	}

	if task.UpdatedAt.After(rec.UpdatedAt) {
		return nil
	}

	newTask, ok := mapper.SheetRecordToTask(toSheetRecordInput(rec), entry, task)
	if !ok {
		return s.Transaction(func(tx *store.Store) error {
			if err := tx.MarkMappingSyncStatus(task.TaskID, models.SyncConflict); err != nil {
				return err
			}
			return tx.AppendAudit(models.AuditEntry{
				Direction: models.DirectionPull, Subject: "task", SubjectID: task.TaskID,
				Status: "conflict", Message: "record " + rec.RecordID + " has a status value outside the lattice",
			})
		})
	}

	semanticConflict := m.SyncStatus == models.SyncPending && tasksDifferSemantically(task, newTask)

	return s.Transaction(func(tx *store.Store) error {
		newTask.TaskID = task.TaskID
		if err := tx.UpsertTask(newTask); err != nil {
			return err
		}
		if semanticConflict {
			if err := tx.MarkMappingSyncStatus(task.TaskID, models.SyncConflict); err != nil {
				return err
			}
			if err := tx.AppendAudit(models.AuditEntry{
				Direction: models.DirectionPull, Subject: "task", SubjectID: task.TaskID,
				Status: "conflict", Message: "record " + rec.RecordID + " and local task both changed; last-write-wins applied",
			}); err != nil {
				return err
			}
			if operatorMemberID != "" {
				if _, err := tx.EnqueueOutbox(models.KindNotifyMember, task.TaskID, models.JSONPayload{
					"memberId": operatorMemberID,
					"message":  fmt.Sprintf("task %s conflicted between sheet and local edits; sheet's value was kept", task.TaskID),
				}); err != nil {
					return err
				}
			}
			return nil
		}
		_, err := tx.EnqueueOutbox(models.KindForgeUpdateIssue, task.TaskID, models.JSONPayload{"taskId": task.TaskID})
		return err
	})
}

// tasksDifferSemantically reports whether two task snapshots diverge
// in any field a sync decision cares about, ignoring timestamps.
func tasksDifferSemantically(a, b *models.Task) bool {
	return a.Title != b.Title || a.Body != b.Body || a.Status != b.Status || a.Priority != b.Priority
}

func toForgeIssueInput(repo string, issue forge.Issue) mapper.ForgeIssueInput {
	return mapper.ForgeIssueInput{
		Repo: repo, Number: issue.Number, Title: issue.Title, Body: issue.Body,
		State: issue.State, StateReason: issue.StateReason, Labels: issue.Labels,
		AssigneeLogin: issue.AssigneeLogin, UpdatedAt: issue.UpdatedAt,
	}
}

func toSheetRecordInput(rec sheet.Record) mapper.SheetRecordInput {
	return mapper.SheetRecordInput{RecordID: rec.RecordID, Fields: rec.Fields, UpdatedAt: rec.UpdatedAt}
}

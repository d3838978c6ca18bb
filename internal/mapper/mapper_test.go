package mapper

import (
	"testing"

	"synctl/internal/models"
)

func TestForgeTitleRoundTrip(t *testing.T) {
	title := ForgeTitle("tsk-abc123", "Fix login bug")
	bare, taskID := StripForgeTitlePrefix(title)
	if bare != "Fix login bug" {
		t.Errorf("bare = %q, want %q", bare, "Fix login bug")
	}
	if taskID != "tsk-abc123" {
		t.Errorf("taskID = %q, want %q", taskID, "tsk-abc123")
	}
}

func TestStripForgeTitlePrefixNoPrefix(t *testing.T) {
	bare, taskID := StripForgeTitlePrefix("a human wrote this")
	if bare != "a human wrote this" || taskID != "" {
		t.Errorf("got (%q, %q), want passthrough with empty taskID", bare, taskID)
	}
}

func TestTaskToForgeIssueEncodesPriorityAndAssignee(t *testing.T) {
	task := &models.Task{
		TaskID:   "tsk-1",
		Title:    "Ship it",
		Status:   models.StatusInProgress,
		Priority: models.PriorityHigh,
		Labels:   models.StringSlice{"backend"},
	}
	payload := TaskToForgeIssue(task, &Assignee{ForgeUsername: "octocat"})

	if payload.Title != "[AUTO][task:tsk-1] Ship it" {
		t.Errorf("Title = %q", payload.Title)
	}
	if payload.State != "open" {
		t.Errorf("State = %q, want open", payload.State)
	}
	if len(payload.Assignees) != 1 || payload.Assignees[0] != "octocat" {
		t.Errorf("Assignees = %v", payload.Assignees)
	}
	found := false
	for _, l := range payload.Labels {
		if l == "priority:high" {
			found = true
		}
	}
	if !found {
		t.Errorf("Labels = %v, want priority:high", payload.Labels)
	}
}

func TestForgeIssueToTaskStripsPrefixAndSplitsPriority(t *testing.T) {
	issue := ForgeIssueInput{
		Title:  "[AUTO][task:tsk-1] Ship it",
		State:  "open",
		Labels: []string{"backend", "priority:critical"},
	}
	task := ForgeIssueToTask(issue, nil)

	if task.Title != "Ship it" {
		t.Errorf("Title = %q", task.Title)
	}
	if task.Priority != models.PriorityCritical {
		t.Errorf("Priority = %q, want critical", task.Priority)
	}
	if len(task.Labels) != 1 || task.Labels[0] != "backend" {
		t.Errorf("Labels = %v, want [backend]", task.Labels)
	}
	if task.Status != models.StatusToDo {
		t.Errorf("Status = %q, want ToDo", task.Status)
	}
}

func TestForgeIssueToTaskEmptyTitleBecomesUntitled(t *testing.T) {
	task := ForgeIssueToTask(ForgeIssueInput{Title: "", State: "open"}, nil)
	if task.Title != "(untitled)" {
		t.Errorf("Title = %q, want (untitled)", task.Title)
	}
}

func TestForgeIssueToTaskClosedNotPlannedMapsToCancelled(t *testing.T) {
	task := ForgeIssueToTask(ForgeIssueInput{Title: "x", State: "closed", StateReason: "not_planned"}, nil)
	if task.Status != models.StatusCancelled {
		t.Errorf("Status = %q, want Cancelled", task.Status)
	}
}

func TestForgeIssueToTaskOpenPreservesInProgress(t *testing.T) {
	existing := &models.Task{Status: models.StatusInProgress}
	task := ForgeIssueToTask(ForgeIssueInput{Title: "x", State: "open"}, existing)
	if task.Status != models.StatusInProgress {
		t.Errorf("Status = %q, want InProgress preserved", task.Status)
	}
}

func TestTaskToSheetRecordUsesFieldMap(t *testing.T) {
	entry := &models.SheetTableRegistryEntry{
		FieldNameMap: models.StringMap{"title": "Name", "status": "State", "assignee": "Owner"},
	}
	task := &models.Task{Title: "Ship it", Status: models.StatusDone}
	payload := TaskToSheetRecord(task, entry, &Assignee{SheetOpenID: "ou_123"})

	if payload.Fields["Name"] != "Ship it" {
		t.Errorf("Fields[Name] = %v", payload.Fields["Name"])
	}
	if payload.Fields["State"] != SheetStatusDone {
		t.Errorf("Fields[State] = %v", payload.Fields["State"])
	}
	owners, ok := payload.Fields["Owner"].([]sheetAssigneeValue)
	if !ok || len(owners) != 1 || owners[0].ID != "ou_123" {
		t.Errorf("Fields[Owner] = %v", payload.Fields["Owner"])
	}
}

func TestSheetRecordToTaskFlagsOutOfLatticeStatus(t *testing.T) {
	entry := &models.SheetTableRegistryEntry{}
	record := SheetRecordInput{Fields: map[string]interface{}{"Status": "Blocked"}}

	task, ok := SheetRecordToTask(record, entry, nil)
	if ok {
		t.Fatal("SheetRecordToTask() ok = true, want false for out-of-lattice status")
	}
	if task == nil {
		t.Fatal("SheetRecordToTask() returned nil task even on conflict")
	}
}

func TestSheetRecordToTaskDefaultColumns(t *testing.T) {
	entry := &models.SheetTableRegistryEntry{}
	record := SheetRecordInput{Fields: map[string]interface{}{
		"Task Name": "Do the thing",
		"Status":    "In Progress",
	}}

	task, ok := SheetRecordToTask(record, entry, nil)
	if !ok {
		t.Fatal("SheetRecordToTask() ok = false, want true")
	}
	if task.Title != "Do the thing" {
		t.Errorf("Title = %q", task.Title)
	}
	if task.Status != models.StatusInProgress {
		t.Errorf("Status = %q, want InProgress", task.Status)
	}
}

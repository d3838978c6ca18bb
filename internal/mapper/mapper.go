package mapper

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"synctl/internal/models"
)

// TitlePrefix is prepended to every forge issue title created from a
// Task, and is the deterministic key the Dispatcher's idempotency
// pre-check searches for.
const TitlePrefix = "[AUTO][task:%s] "

var titlePrefixPattern = regexp.MustCompile(`^\[AUTO\]\[task:([^\]]+)\] `)

// ForgeTitle builds the prefixed issue title for a Task.
func ForgeTitle(taskID, title string) string {
	return fmt.Sprintf(TitlePrefix, taskID) + title
}

// StripForgeTitlePrefix removes the [AUTO][task:<id>] prefix if present,
// returning the bare title and the taskId it encoded (empty if none).
func StripForgeTitlePrefix(title string) (bare string, taskID string) {
	m := titlePrefixPattern.FindStringSubmatch(title)
	if m == nil {
		return title, ""
	}
	return title[len(m[0]):], m[1]
}

// priorityLabelPrefix encodes priority as a forge label: "priority:<level>".
const priorityLabelPrefix = "priority:"

// Assignee is the Identity Resolver's output, threaded into the mapper by
// the caller so the mapper itself stays I/O-free and deterministic.
type Assignee struct {
	ForgeUsername string
	SheetOpenID   string
}

// ForgeIssuePayload is the write shape sent to the forge gateway.
type ForgeIssuePayload struct {
	Title       string
	Body        string
	State       string
	StateReason string
	Labels      []string
	Assignees   []string
}

// TaskToForgeIssue builds the forge write payload for task. mapping may
// be nil (first creation, no binding yet).
func TaskToForgeIssue(task *models.Task, assignee *Assignee) ForgeIssuePayload {
	state := InternalStatusToForge(task.Status)

	labels := append([]string{}, task.Labels...)
	if task.Priority != "" {
		labels = append(labels, priorityLabelPrefix+task.Priority)
	}

	var assignees []string
	if assignee != nil && assignee.ForgeUsername != "" {
		assignees = []string{assignee.ForgeUsername}
	}

	return ForgeIssuePayload{
		Title:       ForgeTitle(task.TaskID, task.Title),
		Body:        task.Body,
		State:       state.State,
		StateReason: state.StateReason,
		Labels:      labels,
		Assignees:   assignees,
	}
}

// ForgeIssueInput is the read shape returned by the forge gateway.
type ForgeIssueInput struct {
	Repo          string
	Number        int
	Title         string
	Body          string
	State         string
	StateReason   string
	Labels        []string
	AssigneeLogin string
	UpdatedAt     time.Time
}

// ForgeIssueToTask builds (or updates) a Task from a forge issue.
// existing may be nil for a brand-new pull. The returned Task is not
// persisted by this function — pure
func ForgeIssueToTask(issue ForgeIssueInput, existing *models.Task) *models.Task {
	var task models.Task
	if existing != nil {
		task = *existing
	} else {
		task.Source = models.SourceForgePull
	}

	title, _ := StripForgeTitlePrefix(issue.Title)
	if title == "" {
		title = "(untitled)"
	}
	task.Title = title
	task.Body = issue.Body
	task.Status = ForgeToInternalStatus(issue.State, issue.StateReason, existing)

	var priority string
	var labels models.StringSlice
	for _, l := range issue.Labels {
		if strings.HasPrefix(l, priorityLabelPrefix) {
			priority = strings.TrimPrefix(l, priorityLabelPrefix)
			continue
		}
		labels = append(labels, l)
	}
	task.Labels = labels
	if models.ValidPriority(priority) {
		task.Priority = priority
	} else if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	return &task
}

// TaskIDFieldName resolves the column a sheet record stores its
// originating taskId under, the deterministic key the Dispatcher's
// idempotency pre-check searches for.
func TaskIDFieldName(entry *models.SheetTableRegistryEntry) string {
	col, ok := entry.FieldName("taskId")
	if !ok || col == "" {
		return "Task ID"
	}
	return col
}

// SheetRecordPayload is the write shape sent to the sheet gateway: field
// name -> value, keyed by the table's own column names (already
// translated through the registry entry's fieldNameMap).
type SheetRecordPayload struct {
	Fields map[string]interface{}
}

// sheetAssigneeValue is the literal shape Lark/Feishu expects for a
// user-type column.
type sheetAssigneeValue struct {
	ID string `json:"id"`
}

// TaskToSheetRecord builds the sheet write payload for task using entry's
// field map. Labels and priority only propagate when entry names a
// column for them — "no propagation" is this system's documented default.
func TaskToSheetRecord(task *models.Task, entry *models.SheetTableRegistryEntry, assignee *Assignee) SheetRecordPayload {
	fields := map[string]interface{}{}

	fields[TaskIDFieldName(entry)] = task.TaskID

	titleCol, _ := entry.FieldName("title")
	if titleCol == "" {
		titleCol = "Task Name"
	}
	fields[titleCol] = task.Title

	statusCol, _ := entry.FieldName("status")
	if statusCol == "" {
		statusCol = "Status"
	}
	fields[statusCol] = InternalStatusToSheet(task.Status)

	if assignee != nil && assignee.SheetOpenID != "" {
		assigneeCol, _ := entry.FieldName("assignee")
		if assigneeCol == "" {
			assigneeCol = "Assignee"
		}
		fields[assigneeCol] = []sheetAssigneeValue{{ID: assignee.SheetOpenID}}
	} else {
		assigneeCol, ok := entry.FieldName("assignee")
		if ok {
			fields[assigneeCol] = []sheetAssigneeValue{}
		}
	}

	if entry.LabelColumn != "" && len(task.Labels) > 0 {
		fields[entry.LabelColumn] = []string(task.Labels)
	}
	if entry.PriorityColumn != "" && task.Priority != "" {
		fields[entry.PriorityColumn] = task.Priority
	}

	return SheetRecordPayload{Fields: fields}
}

// SheetRecordInput is the read shape returned by the sheet gateway.
type SheetRecordInput struct {
	RecordID  string
	Fields    map[string]interface{}
	UpdatedAt time.Time
}

// SheetRecordToTask builds (or updates) a Task from a sheet record. A
// status value outside the lattice is reported via ok=false so the
// caller can mark syncStatus=conflict without overwriting local status
//.
func SheetRecordToTask(record SheetRecordInput, entry *models.SheetTableRegistryEntry, existing *models.Task) (task *models.Task, ok bool) {
	var t models.Task
	if existing != nil {
		t = *existing
	} else {
		t.Source = models.SourceSheetPull
	}

	titleCol, _ := entry.FieldName("title")
	if titleCol == "" {
		titleCol = "Task Name"
	}
	if v, found := stringField(record.Fields, titleCol); found {
		if v == "" {
			v = "(untitled)"
		}
		t.Title = v
	}

	statusCol, _ := entry.FieldName("status")
	if statusCol == "" {
		statusCol = "Status"
	}
	rawStatus, _ := stringField(record.Fields, statusCol)
	status, statusOK := SheetToInternalStatus(rawStatus)
	if !statusOK {
		return &t, false
	}
	t.Status = status

	if entry.LabelColumn != "" {
		if labels, found := record.Fields[entry.LabelColumn]; found {
			t.Labels = toStringSlice(labels)
		}
	}
	if entry.PriorityColumn != "" {
		if p, found := stringField(record.Fields, entry.PriorityColumn); found && models.ValidPriority(p) {
			t.Priority = p
		}
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	return &t, true
}

func stringField(fields map[string]interface{}, key string) (string, bool) {
	v, found := fields[key]
	if !found || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func toStringSlice(v interface{}) models.StringSlice {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make(models.StringSlice, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Status lattice — the closed set of internal statuses. Single source of
// truth; internal/mapper/status.go maps these to each external store's
// representation.
const (
	StatusToDo       = "ToDo"
	StatusInProgress = "InProgress"
	StatusDone       = "Done"
	StatusCancelled  = "Cancelled"
)

// Priority levels.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Source records which side a Task originated from.
const (
	SourceIntent    = "intent"
	SourceForgePull = "forgePull"
	SourceSheetPull = "sheetPull"
)

const taskIDPrefix = "tsk-"

// Task is the local record of a work item.
type Task struct {
	TaskID           string      `gorm:"column:task_id;primaryKey;size:20" json:"taskId"`
	Title            string      `gorm:"column:title;not null" json:"title"`
	Body             string      `gorm:"column:body;type:text" json:"body,omitempty"`
	Status           string      `gorm:"column:status;size:20;default:ToDo;index" json:"status"`
	Priority         string      `gorm:"column:priority;size:20;default:medium" json:"priority"`
	Source           string      `gorm:"column:source;size:20;default:intent" json:"source"`
	AssigneeMemberID string      `gorm:"column:assignee_member_id;size:20;index" json:"assigneeMemberId,omitempty"`
	Labels           StringSlice `gorm:"column:labels;type:text" json:"labels,omitempty"`
	TargetTable      string      `gorm:"column:target_table;size:100" json:"targetTable,omitempty"`

	// Carried from the original schema (src/db/schema.py); not excluded by
	// any Non-goal. DueDate is a plain RFC3339 string column so an absent
	// due date serializes as "" rather than a zero time.Time.
	DueDate  string `gorm:"column:due_date;size:40" json:"dueDate,omitempty"`
	Progress int    `gorm:"column:progress;default:0" json:"progress"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Task.
func (Task) TableName() string { return "tasks" }

func generateTaskID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return taskIDPrefix + hex.EncodeToString(b)
}

// BeforeCreate generates a TaskID and fills lattice/priority defaults.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.TaskID == "" {
		t.TaskID = generateTaskID()
	}
	if t.Status == "" {
		t.Status = StatusToDo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Source == "" {
		t.Source = SourceIntent
	}
	return nil
}

// ValidStatus reports whether status is a member of the lattice.
func ValidStatus(status string) bool {
	switch status {
	case StatusToDo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// ValidPriority reports whether priority is one of the recognized levels.
func ValidPriority(priority string) bool {
	switch priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// IsClosed reports whether the task has left the active part of the lattice.
func (t *Task) IsClosed() bool {
	return t.Status == StatusDone || t.Status == StatusCancelled
}

// Close marks the task with the given terminal status. The reason is
// recorded by the caller as an audit message, not stored on Task itself —
// doesn't give Task a closeReason field, only Mapping's sync state
// and the audit log track it.
func (t *Task) Close(status string) {
	t.Status = status
}

// AddLabel adds a label if it doesn't already exist.
func (t *Task) AddLabel(label string) {
	if t.Labels.Contains(label) {
		return
	}
	t.Labels = append(t.Labels, label)
}

// RemoveLabel removes a label if present.
func (t *Task) RemoveLabel(label string) {
	for i, l := range t.Labels {
		if l == label {
			t.Labels = append(t.Labels[:i], t.Labels[i+1:]...)
			return
		}
	}
}

// ClampProgress clamps p into the valid 0-100 range, mirroring the
// original schema's CHECK(progress >= 0 AND progress <= 100).
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

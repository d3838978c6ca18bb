package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox event kinds.
const (
	KindForgeCreateIssue   = "forgeCreateIssue"
	KindForgeUpdateIssue   = "forgeUpdateIssue"
	KindForgeCloseIssue    = "forgeCloseIssue"
	KindSheetCreateRecord  = "sheetCreateRecord"
	KindSheetUpdateRecord  = "sheetUpdateRecord"
	KindConvertForgeToSheet = "convertForgeToSheet"
	KindConvertSheetToForge = "convertSheetToForge"
	KindNotifyMember       = "notifyMember"
)

// Outbox event status.
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxSent       = "sent"
	OutboxFailed     = "failed"
	OutboxDead       = "dead"
)

// DefaultMaxAttempts is the default retry ceiling for an outbox event.
const DefaultMaxAttempts = 5

// OutboxEvent is a durable intent to perform an external side-effect.
type OutboxEvent struct {
	EventID   string      `gorm:"column:event_id;primaryKey;size:40" json:"eventId"`
	Kind      string      `gorm:"column:kind;size:40;not null;index" json:"kind"`
	Payload   JSONPayload `gorm:"column:payload;type:text" json:"payload"`
	Status    string      `gorm:"column:status;size:20;default:pending;index" json:"status"`
	Attempts  int         `gorm:"column:attempts;default:0" json:"attempts"`
	MaxAttempts int       `gorm:"column:max_attempts;default:5" json:"maxAttempts"`
	LastError string      `gorm:"column:last_error;type:text" json:"lastError,omitempty"`
	NotBefore time.Time   `gorm:"column:not_before;index" json:"notBefore"`

	// ProcessingStartedAt drives reclaim of crashed workers; nil when not processing.
	ProcessingStartedAt *time.Time `gorm:"column:processing_started_at" json:"processingStartedAt,omitempty"`

	// TaskID denormalizes the payload's taskId so ClaimOutbox's per-task
	// serialization predicate can be expressed as a plain SQL WHERE clause
	// instead of unpacking JSON for every candidate row.
	TaskID string `gorm:"column:task_id;size:20;index" json:"taskId,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for OutboxEvent.
func (OutboxEvent) TableName() string { return "outbox" }

// BeforeCreate generates an EventID and fills defaults.
func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == "" {
		e.EventID = "evt-" + uuid.New().String()
	}
	if e.Status == "" {
		e.Status = OutboxPending
	}
	if e.MaxAttempts == 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	if e.NotBefore.IsZero() {
		e.NotBefore = time.Now()
	}
	return nil
}

// IsTerminal reports whether the event will never be claimed again.
func (e *OutboxEvent) IsTerminal() bool {
	return e.Status == OutboxSent || e.Status == OutboxDead
}

// ExhaustedRetries reports whether another attempt would exceed MaxAttempts.
func (e *OutboxEvent) ExhaustedRetries() bool {
	return e.Attempts >= e.MaxAttempts
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit directions.
const (
	DirectionPush = "push" // local -> external
	DirectionPull = "pull" // external -> local
	DirectionLocal = "local"
)

// AuditEntry is an append-only record for conflict inspection and
// operator visibility. Never updated, never soft-deleted.
type AuditEntry struct {
	ID        string    `gorm:"column:id;primaryKey;size:40" json:"id"`
	Direction string    `gorm:"column:direction;size:20;not null" json:"direction"`
	Subject   string    `gorm:"column:subject;size:40;not null" json:"subject"`
	SubjectID string    `gorm:"column:subject_id;size:40;index" json:"subjectId"`
	Status    string    `gorm:"column:status;size:20;not null" json:"status"`
	Message   string    `gorm:"column:message;type:text" json:"message,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
}

// TableName specifies the table name for AuditEntry.
func (AuditEntry) TableName() string { return "sync_log" }

// BeforeCreate generates an audit entry ID.
func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = "aud-" + uuid.New().String()
	}
	return nil
}

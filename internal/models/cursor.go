package models

import "time"

// Reconciler source names.
const (
	SourceForge = "forge"
	SourceSheet = "sheet"
)

// SyncCursor is a per-source polling watermark: an RFC3339 timestamp or an
// opaque continuation token, whichever the source's query style needs.
type SyncCursor struct {
	Source    string    `gorm:"column:source;primaryKey;size:20" json:"source"`
	Value     string    `gorm:"column:value;size:100" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for SyncCursor.
func (SyncCursor) TableName() string { return "sync_state" }

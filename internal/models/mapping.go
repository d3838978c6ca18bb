package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mapping sync status.
const (
	SyncSynced   = "synced"
	SyncPending  = "pending"
	SyncConflict = "conflict"
	SyncError    = "error"
)

// ForgeRef identifies an issue on the forge side.
type ForgeRef struct {
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// Empty reports whether the ref has never been set.
func (r ForgeRef) Empty() bool { return r.Repo == "" && r.Number == 0 }

// SheetRef identifies a record on the sheet side.
type SheetRef struct {
	AppToken string `json:"appToken"`
	TableID  string `json:"tableId"`
	RecordID string `json:"recordId"`
}

// Empty reports whether the ref has never been set.
func (r SheetRef) Empty() bool { return r.AppToken == "" && r.TableID == "" && r.RecordID == "" }

// Mapping is the bridge between one local Task and its external bindings.
// At most one forge reference and one sheet reference per Task; once a
// reference is set it is immutable for that Task's lifetime (enforced by
// the store's SetMappingForgeRef/SetMappingSheetRef, not by SQL).
type Mapping struct {
	MappingID string `gorm:"column:mapping_id;primaryKey;size:40" json:"mappingId"`
	TaskID    string `gorm:"column:task_id;uniqueIndex;size:20;not null" json:"taskId"`

	ForgeRepo   string `gorm:"column:forge_repo;size:200;index" json:"forgeRepo,omitempty"`
	ForgeNumber int    `gorm:"column:forge_number;index" json:"forgeNumber,omitempty"`

	SheetAppToken string `gorm:"column:sheet_app_token;size:100;index" json:"sheetAppToken,omitempty"`
	SheetTableID  string `gorm:"column:sheet_table_id;size:100;index" json:"sheetTableId,omitempty"`
	SheetRecordID string `gorm:"column:sheet_record_id;size:100;index" json:"sheetRecordId,omitempty"`

	SyncStatus string `gorm:"column:sync_status;size:20;default:pending;index" json:"syncStatus"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Mapping.
func (Mapping) TableName() string { return "mappings" }

// BeforeCreate generates a MappingID if not set.
func (m *Mapping) BeforeCreate(tx *gorm.DB) error {
	if m.MappingID == "" {
		m.MappingID = "map-" + uuid.New().String()
	}
	if m.SyncStatus == "" {
		m.SyncStatus = SyncPending
	}
	return nil
}

// HasForgeRef reports whether a forge binding has been set.
func (m *Mapping) HasForgeRef() bool {
	return m.ForgeRepo != "" && m.ForgeNumber != 0
}

// HasSheetRef reports whether a sheet binding has been set.
func (m *Mapping) HasSheetRef() bool {
	return m.SheetAppToken != "" && m.SheetTableID != "" && m.SheetRecordID != ""
}

// GetForgeRef returns the forge-side reference, zero-valued if unset.
func (m *Mapping) GetForgeRef() ForgeRef {
	return ForgeRef{Repo: m.ForgeRepo, Number: m.ForgeNumber}
}

// GetSheetRef returns the sheet-side reference, zero-valued if unset.
func (m *Mapping) GetSheetRef() SheetRef {
	return SheetRef{AppToken: m.SheetAppToken, TableID: m.SheetTableID, RecordID: m.SheetRecordID}
}

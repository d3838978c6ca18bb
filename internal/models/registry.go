package models

import "time"

// SheetTableRegistryEntry describes a known spreadsheet table: its
// identifiers, the internal-name -> external-column-name field map, and
// whether the sheet side supports filtering records by modification time.
type SheetTableRegistryEntry struct {
	RegistryID  string    `gorm:"column:registry_id;primaryKey;size:40" json:"registryId"`
	AppToken    string    `gorm:"column:app_token;uniqueIndex:idx_app_table;size:100;not null" json:"appToken"`
	TableID     string    `gorm:"column:table_id;uniqueIndex:idx_app_table;size:100;not null" json:"tableId"`
	DisplayName string    `gorm:"column:display_name;size:200" json:"displayName"`
	FieldNameMap StringMap `gorm:"column:field_name_map;type:text" json:"fieldNameMap,omitempty"`
	LabelColumn  string    `gorm:"column:label_column;size:100" json:"labelColumn,omitempty"`
	PriorityColumn string  `gorm:"column:priority_column;size:100" json:"priorityColumn,omitempty"`
	IsDefault   bool      `gorm:"column:is_default;default:false" json:"isDefault"`

	// SupportsSinceQuery is false for sheet backends that can't filter
	// records by last-modified timestamp; the Reconciler falls back to a
	// full scan with content hashing for those tables.
	SupportsSinceQuery bool `gorm:"column:supports_since_query;default:true" json:"supportsSinceQuery"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for SheetTableRegistryEntry.
func (SheetTableRegistryEntry) TableName() string { return "sheet_tables_registry" }

// FieldName resolves an internal field name to its column name on this
// table, falling back to the internal name when unmapped (no propagation
// by default).
func (e SheetTableRegistryEntry) FieldName(internal string) (string, bool) {
	col, ok := e.FieldNameMap[internal]
	return col, ok
}

package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Member roles.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleDeveloper = "developer"
	RoleDesigner  = "designer"
	RoleQA        = "qa"
	RoleMember    = "member"
)

// Member status.
const (
	MemberActive   = "active"
	MemberInactive = "inactive"
)

const memberIDPrefix = "mem-"

// Member is the canonical identity shared by both external stores.
type Member struct {
	MemberID string `gorm:"column:member_id;primaryKey;size:20" json:"memberId"`
	// Name backs FindMemberByName lookups and display output.
	Name            string      `gorm:"column:name;size:200;index" json:"name,omitempty"`
	Email           string      `gorm:"column:email;uniqueIndex;size:255;not null" json:"email"`
	ForgeUsername   string      `gorm:"column:forge_username;size:100;index" json:"forgeUsername,omitempty"`
	SheetOpenID     string      `gorm:"column:sheet_open_id;size:100;index" json:"sheetOpenId,omitempty"`
	Role            string      `gorm:"column:role;size:20;default:member" json:"role"`
	Status          string      `gorm:"column:status;size:20;default:active;index" json:"status"`
	TableAssignments StringSlice `gorm:"column:table_assignments;type:text" json:"tableAssignments,omitempty"`

	// Carried from the original schema (src/models/member.go); not part of
	// any invariant, surfaced read-only by GetMemberWork.
	Team     string `gorm:"column:team;size:100" json:"team,omitempty"`
	Position string `gorm:"column:position;size:100" json:"position,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Member.
func (Member) TableName() string { return "members" }

func generateMemberID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return memberIDPrefix + hex.EncodeToString(b)
}

// BeforeCreate generates a MemberID if not set.
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.MemberID == "" {
		m.MemberID = generateMemberID()
	}
	if m.Role == "" {
		m.Role = RoleMember
	}
	if m.Status == "" {
		m.Status = MemberActive
	}
	return nil
}

// IsActive reports whether the member is usable for assignment.
func (m *Member) IsActive() bool {
	return m.Status == MemberActive
}

// Deactivate soft-deactivates the member, preserving the row per the
// email-uniqueness-for-all-time invariant.
func (m *Member) Deactivate() {
	m.Status = MemberInactive
}

// ValidRole reports whether role is one of the recognized values.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleDeveloper, RoleDesigner, RoleQA, RoleMember:
		return true
	default:
		return false
	}
}

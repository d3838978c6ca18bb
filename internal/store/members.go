package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"synctl/internal/models"
)

// ErrNotFound is returned by single-row lookups that found nothing.
var ErrNotFound = errors.New("not found")

// UpsertMember creates or updates a Member by MemberID (or by Email when
// MemberID is empty, satisfying the email-uniquely-identifies-a-Member
// invariant).
func (s *Store) UpsertMember(m *models.Member) error {
	if m.MemberID == "" {
		existing, err := s.FindMemberByEmail(m.Email)
		if err == nil {
			m.MemberID = existing.MemberID
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return s.db.Save(m).Error
}

// FindMemberByEmail looks up a Member by its canonical email.
func (s *Store) FindMemberByEmail(email string) (*models.Member, error) {
	var m models.Member
	if err := s.db.Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindMemberByName looks up a Member by its display name. Names are not
// unique; this returns the first match.
func (s *Store) FindMemberByName(name string) (*models.Member, error) {
	var m models.Member
	if err := s.db.Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindMemberByID looks up a Member by its opaque id.
func (s *Store) FindMemberByID(memberID string) (*models.Member, error) {
	var m models.Member
	if err := s.db.Where("member_id = ?", memberID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// MemberFilter narrows ListMembers.
type MemberFilter struct {
	Status string
	Role   string
	Team   string
}

// ListMembers lists members matching filter; zero-valued fields are not
// applied as constraints.
func (s *Store) ListMembers(filter MemberFilter) ([]models.Member, error) {
	q := s.db.Model(&models.Member{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Team != "" {
		q = q.Where("team = ?", filter.Team)
	}
	var members []models.Member
	if err := q.Order("email ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// UpdateMember loads the member, applies mutator, and saves it back.
func (s *Store) UpdateMember(memberID string, mutator func(*models.Member) error) (*models.Member, error) {
	m, err := s.FindMemberByID(memberID)
	if err != nil {
		return nil, err
	}
	if err := mutator(m); err != nil {
		return nil, err
	}
	if err := s.db.Save(m).Error; err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}
	return m, nil
}

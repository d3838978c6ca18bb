package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"synctl/internal/models"
)

// GetTableRegistryEntry looks up a registered sheet table.
func (s *Store) GetTableRegistryEntry(appToken, tableID string) (*models.SheetTableRegistryEntry, error) {
	var e models.SheetTableRegistryEntry
	if err := s.db.Where("app_token = ? AND table_id = ?", appToken, tableID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// GetDefaultTable returns the registry entry marked as default, if any.
func (s *Store) GetDefaultTable() (*models.SheetTableRegistryEntry, error) {
	var e models.SheetTableRegistryEntry
	if err := s.db.Where("is_default = ?", true).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListTableRegistry lists every registered table.
func (s *Store) ListTableRegistry() ([]models.SheetTableRegistryEntry, error) {
	var entries []models.SheetTableRegistryEntry
	if err := s.db.Order("display_name ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertTableRegistryEntry creates or updates a registry entry keyed by
// (appToken, tableId).
func (s *Store) UpsertTableRegistryEntry(e *models.SheetTableRegistryEntry) error {
	existing, err := s.GetTableRegistryEntry(e.AppToken, e.TableID)
	if err == nil {
		e.RegistryID = existing.RegistryID
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if e.RegistryID == "" {
		e.RegistryID = "reg-" + uuid.New().String()
	}
	return s.db.Save(e).Error
}

// ResolveTargetTable resolves a Task's targetTable ("appToken/tableId",
// or a registry display name) to its registry entry, falling back to
// GetDefaultTable when targetTable is empty.
func (s *Store) ResolveTargetTable(targetTable string) (*models.SheetTableRegistryEntry, error) {
	if targetTable == "" {
		return s.GetDefaultTable()
	}
	if appToken, tableID, ok := strings.Cut(targetTable, "/"); ok {
		if e, err := s.GetTableRegistryEntry(appToken, tableID); err == nil {
			return e, nil
		}
	}
	var e models.SheetTableRegistryEntry
	if err := s.db.Where("display_name = ?", targetTable).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown target table %q", ErrNotFound, targetTable)
		}
		return nil, err
	}
	return &e, nil
}

// SetDefaultTable clears any existing default and marks (appToken,
// tableId) as the new default, atomically — the at-most-one-default
// invariant is maintained within a single transaction.
func (s *Store) SetDefaultTable(appToken, tableID string) error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.db.Model(&models.SheetTableRegistryEntry{}).
			Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.db.Model(&models.SheetTableRegistryEntry{}).
			Where("app_token = ? AND table_id = ?", appToken, tableID).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: table %s/%s is not registered", ErrNotFound, appToken, tableID)
		}
		return nil
	})
}

package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"synctl/internal/models"
)

// ErrRefAlreadySet is returned when a caller tries to change a Mapping
// reference that has already been bound
// invariant: once a reference is set it never changes for that Task's
// lifetime.
var ErrRefAlreadySet = errors.New("mapping reference already set")

// GetMappingByTask loads the Mapping for a Task, creating an empty
// pending one if none exists yet — Mappings accrete bindings over a
// Task's life, so callers can always expect
// one to exist once a Task does.
func (s *Store) GetMappingByTask(taskID string) (*models.Mapping, error) {
	var m models.Mapping
	err := s.db.Where("task_id = ?", taskID).First(&m).Error
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	m = models.Mapping{TaskID: taskID, SyncStatus: models.SyncPending}
	if err := s.db.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to create mapping: %w", err)
	}
	return &m, nil
}

// GetMappingByForgeRef locates the Mapping bound to a given forge issue.
func (s *Store) GetMappingByForgeRef(repo string, number int) (*models.Mapping, error) {
	var m models.Mapping
	if err := s.db.Where("forge_repo = ? AND forge_number = ?", repo, number).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetMappingBySheetRef locates the Mapping bound to a given sheet record.
func (s *Store) GetMappingBySheetRef(appToken, tableID, recordID string) (*models.Mapping, error) {
	var m models.Mapping
	if err := s.db.Where(
		"sheet_app_token = ? AND sheet_table_id = ? AND sheet_record_id = ?",
		appToken, tableID, recordID,
	).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// SetMappingForgeRef binds the forge side of a Mapping. Refuses to
// overwrite an already-set reference.
func (s *Store) SetMappingForgeRef(taskID string, ref models.ForgeRef) error {
	m, err := s.GetMappingByTask(taskID)
	if err != nil {
		return err
	}
	if m.HasForgeRef() {
		return fmt.Errorf("%w: task %s already bound to %s#%d", ErrRefAlreadySet, taskID, m.ForgeRepo, m.ForgeNumber)
	}
	m.ForgeRepo = ref.Repo
	m.ForgeNumber = ref.Number
	return s.db.Save(m).Error
}

// SetMappingSheetRef binds the sheet side of a Mapping. Refuses to
// overwrite an already-set reference.
func (s *Store) SetMappingSheetRef(taskID string, ref models.SheetRef) error {
	m, err := s.GetMappingByTask(taskID)
	if err != nil {
		return err
	}
	if m.HasSheetRef() {
		return fmt.Errorf("%w: task %s already bound to %s/%s/%s", ErrRefAlreadySet, taskID, m.SheetAppToken, m.SheetTableID, m.SheetRecordID)
	}
	m.SheetAppToken = ref.AppToken
	m.SheetTableID = ref.TableID
	m.SheetRecordID = ref.RecordID
	return s.db.Save(m).Error
}

// MarkMappingSyncStatus updates the Mapping's sync status.
func (s *Store) MarkMappingSyncStatus(taskID, status string) error {
	m, err := s.GetMappingByTask(taskID)
	if err != nil {
		return err
	}
	m.SyncStatus = status
	return s.db.Save(m).Error
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"synctl/internal/models"
)

// UpsertTask creates or updates a Task by TaskID.
func (s *Store) UpsertTask(t *models.Task) error {
	return s.db.Save(t).Error
}

// FindTaskByID loads a Task by its id.
func (s *Store) FindTaskByID(taskID string) (*models.Task, error) {
	var t models.Task
	if err := s.db.Where("task_id = ?", taskID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateTask loads the task, snapshots its prior state into the audit
// log, applies mutator, and saves it back.
func (s *Store) UpdateTask(taskID string, mutator func(*models.Task) error) (*models.Task, error) {
	t, err := s.FindTaskByID(taskID)
	if err != nil {
		return nil, err
	}

	before, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot task: %w", err)
	}

	if err := mutator(t); err != nil {
		return nil, err
	}

	if err := s.db.Save(t).Error; err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if err := s.AppendAudit(models.AuditEntry{
		Direction: models.DirectionLocal,
		Subject:   "task",
		SubjectID: t.TaskID,
		Status:    "updated",
		Message:   string(before),
	}); err != nil {
		return nil, fmt.Errorf("failed to append audit snapshot: %w", err)
	}

	return t, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status           string
	AssigneeMemberID string
	TargetTable      string
	Source           string
}

// ListTasks lists tasks matching filter; zero-valued fields are not
// applied as constraints.
func (s *Store) ListTasks(filter TaskFilter) ([]models.Task, error) {
	q := s.db.Model(&models.Task{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AssigneeMemberID != "" {
		q = q.Where("assignee_member_id = ?", filter.AssigneeMemberID)
	}
	if filter.TargetTable != "" {
		q = q.Where("target_table = ?", filter.TargetTable)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	var tasks []models.Task
	if err := q.Order("updated_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

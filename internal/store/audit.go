package store

import "synctl/internal/models"

// AppendAudit appends an entry to the append-only audit log.
func (s *Store) AppendAudit(entry models.AuditEntry) error {
	return s.db.Create(&entry).Error
}

// ListAudit lists audit entries for a subject, newest first.
func (s *Store) ListAudit(subject, subjectID string, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	q := s.db.Where("subject = ? AND subject_id = ?", subject, subjectID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

package store

import (
	"errors"

	"gorm.io/gorm"

	"synctl/internal/models"
)

// GetCursor reads the polling watermark for source, returning "" if never set.
func (s *Store) GetCursor(source string) (string, error) {
	var c models.SyncCursor
	if err := s.db.Where("source = ?", source).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return c.Value, nil
}

// SetCursor advances the polling watermark for source. Callers are
// responsible for the monotonicity guarantee (P7) — this method does not
// itself reject a regression, since a full resync after a registry change
// is a legitimate reason to reset a cursor.
func (s *Store) SetCursor(source, value string) error {
	c := models.SyncCursor{Source: source, Value: value}
	return s.db.Save(&c).Error
}

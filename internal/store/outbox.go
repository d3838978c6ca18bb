package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"synctl/internal/models"
)

// ReclaimThreshold is how long a "processing" event can sit unfinished
// before the next claim treats its worker as crashed and returns it to
// pending.
const ReclaimThreshold = 2 * time.Minute

// EnqueueOutbox durably records an intent to perform an external
// side-effect. taskID is denormalized from payload so ClaimOutbox's
// per-task serialization predicate is a plain SQL WHERE clause.
func (s *Store) EnqueueOutbox(kind string, taskID string, payload models.JSONPayload) (*models.OutboxEvent, error) {
	ev := &models.OutboxEvent{
		Kind:    kind,
		TaskID:  taskID,
		Payload: payload,
	}
	if err := s.db.Create(ev).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return ev, nil
}

// ClaimOutbox reclaims any stale "processing" events, then claims up to
// limit pending-and-due events — excluding any taskId that already has an
// in-flight event, so external effects on one task are never reordered by
// concurrent dispatch —
// and transitions them to "processing" in one transaction.
func (s *Store) ClaimOutbox(limit int, now time.Time) ([]models.OutboxEvent, error) {
	var claimed []models.OutboxEvent
	err := s.Transaction(func(tx *Store) error {
		if err := tx.db.Model(&models.OutboxEvent{}).
			Where("status = ? AND processing_started_at < ?", models.OutboxProcessing, now.Add(-ReclaimThreshold)).
			Updates(map[string]interface{}{
				"status":                 models.OutboxPending,
				"processing_started_at": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to reclaim stale events: %w", err)
		}

		var candidates []models.OutboxEvent
		if err := tx.db.Where(
			"status = ? AND not_before <= ? AND task_id NOT IN (SELECT task_id FROM outbox WHERE status = ? AND task_id != '')",
			models.OutboxPending, now, models.OutboxProcessing,
		).Order("not_before ASC, created_at ASC").Limit(limit).Find(&candidates).Error; err != nil {
			return fmt.Errorf("failed to select claimable events: %w", err)
		}

		if len(candidates) == 0 {
			return nil
		}

		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.EventID
		}
		if err := tx.db.Model(&models.OutboxEvent{}).
			Where("event_id IN ?", ids).
			Updates(map[string]interface{}{
				"status":                 models.OutboxProcessing,
				"processing_started_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark events processing: %w", err)
		}

		for i := range candidates {
			candidates[i].Status = models.OutboxProcessing
		}
		claimed = candidates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// OutboxOutcome describes the result of dispatching one event.
type OutboxOutcome struct {
	// Sent marks the event as delivered; Transient moves it back to
	// pending with backoff; neither (and no error) is treated as a
	// permanent failure and dead-letters the event.
	Sent      bool
	Transient bool
	NotBefore time.Time
	Err       error
}

// CompleteOutbox applies outcome to the claimed event: sent, retried with
// backoff, or dead-lettered steps 3-5.
func (s *Store) CompleteOutbox(eventID string, outcome OutboxOutcome) error {
	var ev models.OutboxEvent
	if err := s.db.Where("event_id = ?", eventID).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	switch {
	case outcome.Sent:
		ev.Status = models.OutboxSent
		ev.ProcessingStartedAt = nil
	case outcome.Transient:
		ev.Attempts++
		ev.Status = models.OutboxPending
		ev.ProcessingStartedAt = nil
		ev.NotBefore = outcome.NotBefore
		if outcome.Err != nil {
			ev.LastError = outcome.Err.Error()
		}
	default:
		ev.Attempts++
		ev.Status = models.OutboxDead
		ev.ProcessingStartedAt = nil
		if outcome.Err != nil {
			ev.LastError = outcome.Err.Error()
		}
	}

	return s.db.Save(&ev).Error
}

// RequeueFailed moves dead-or-failed-but-not-exhausted events back to
// pending — an explicit, human-invoked transition (doesn't forbid
// it; the original's outbox_repo.retry_failed supports the same op).
func (s *Store) RequeueFailed(limit int) (int, error) {
	var count int64
	err := s.Transaction(func(tx *Store) error {
		res := tx.db.Model(&models.OutboxEvent{}).
			Where("status = ? AND attempts < max_attempts", models.OutboxDead).
			Limit(limit).
			Updates(map[string]interface{}{
				"status":     models.OutboxPending,
				"not_before": time.Now(),
			})
		count = res.RowsAffected
		return res.Error
	})
	return int(count), err
}

// ListOutboxByStatus lists events in a given status, newest first.
func (s *Store) ListOutboxByStatus(status string, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	q := s.db.Where("status = ?", status).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

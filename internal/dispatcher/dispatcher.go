// Package dispatcher drains the outbox: claiming due events, invoking
// the handler for their kind, and recording the outcome.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"synctl/internal/models"
	"synctl/internal/store"
)

// DefaultWorkers is the worker count a Dispatcher starts when the caller
// doesn't override it.
const DefaultWorkers = 4

// DefaultPollInterval is how long a worker sleeps after an empty claim.
const DefaultPollInterval = 2 * time.Second

// DefaultClaimBatch is how many events a single claim pulls at once.
const DefaultClaimBatch = 10

// Dispatcher runs N worker goroutines draining the outbox.
type Dispatcher struct {
	Store    *store.Store
	Handlers *Handlers
	Logger   *slog.Logger

	Workers       int
	PollInterval  time.Duration
	ClaimBatch    int
}

// Run starts the Dispatcher's workers and blocks until ctx is cancelled,
// then waits for any in-flight event to finish before returning —
// graceful shutdown drains the current transaction but claims no more.
func (d *Dispatcher) Run(ctx context.Context) {
	workers := d.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			d.worker(ctx, id)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < workers; i++ {
		<-done
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	pollInterval := d.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	batch := d.ClaimBatch
	if batch <= 0 {
		batch = DefaultClaimBatch
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := d.Store.ClaimOutbox(batch, time.Now())
		if err != nil {
			d.log().Error("claim outbox failed", "worker", id, "error", err)
			if !sleepOrDone(ctx, pollInterval) {
				return
			}
			continue
		}

		if len(claimed) == 0 {
			if !sleepOrDone(ctx, pollInterval) {
				return
			}
			continue
		}

		for _, ev := range claimed {
			d.dispatchOne(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ev models.OutboxEvent) {
	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	outcome := d.Handlers.Handle(callCtx, ev)
	cancel()

	// Attempts exhausted on what would otherwise be a transient retry:
	// dead-letter instead of rescheduling forever.
	if outcome.Transient && ev.ExhaustedRetries() {
		outcome = store.OutboxOutcome{Err: outcome.Err}
	}

	if err := d.Store.CompleteOutbox(ev.EventID, outcome); err != nil {
		d.log().Error("complete outbox failed", "event", ev.EventID, "error", err)
		return
	}

	switch {
	case outcome.Sent:
		return
	case outcome.Transient:
		d.log().Warn("outbox event retrying", "event", ev.EventID, "kind", ev.Kind, "attempts", ev.Attempts+1, "notBefore", outcome.NotBefore)
	default:
		d.log().Error("outbox event dead-lettered", "event", ev.EventID, "kind", ev.Kind, "error", outcome.Err)
		d.deadLetter(ev, outcome.Err)
	}
}

// deadLetter marks the event's mapping as errored and notifies the
// configured operator.
func (d *Dispatcher) deadLetter(ev models.OutboxEvent, cause error) {
	if ev.TaskID != "" {
		if err := d.Store.MarkMappingSyncStatus(ev.TaskID, models.SyncError); err != nil {
			d.log().Error("mark mapping error failed", "task", ev.TaskID, "error", err)
		}
	}
	if err := d.Store.AppendAudit(models.AuditEntry{
		Direction: models.DirectionLocal, Subject: "outbox", SubjectID: ev.EventID,
		Status: "dead", Message: errString(cause),
	}); err != nil {
		d.log().Error("append dead-letter audit failed", "event", ev.EventID, "error", err)
	}
	if d.Handlers.OperatorMemberID == "" {
		return
	}
	message := "sync event " + ev.Kind + " for task " + ev.TaskID + " failed permanently: " + errString(cause)
	if _, err := d.Store.EnqueueOutbox(models.KindNotifyMember, "", models.JSONPayload{
		"memberId": d.Handlers.OperatorMemberID,
		"message":  message,
	}); err != nil {
		d.log().Error("enqueue operator notification failed", "event", ev.EventID, "error", err)
	}
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

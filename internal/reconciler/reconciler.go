// Package reconciler runs the per-source Pollers that pull forge and
// sheet changes back into the local store
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"synctl/internal/gateway/forge"
	"synctl/internal/gateway/sheet"
	"synctl/internal/models"
	"synctl/internal/store"
)

// DefaultInterval is how often a Poller ticks when not overridden.
const DefaultInterval = 300 * time.Second

// ForgeSource is the subset of forge.Client a ForgePoller calls.
type ForgeSource interface {
	ListIssuesSince(ctx context.Context, since time.Time) ([]forge.Issue, error)
}

// SheetSource is the subset of sheet.Client a SheetPoller calls.
type SheetSource interface {
	SearchRecords(ctx context.Context, appToken, tableID string, since time.Time) ([]sheet.Record, error)
}

// ForgePoller pulls issue changes from the configured forge repo.
type ForgePoller struct {
	Store     *store.Store
	Forge     ForgeSource
	ForgeRepo string
	Logger    *slog.Logger
	Interval  time.Duration

	// OperatorMemberID is who conflict notifyMember events are addressed
	// to.
	OperatorMemberID string
}

// SheetPoller pulls record changes across every registered sheet table.
type SheetPoller struct {
	Store    *store.Store
	Sheet    SheetSource
	Logger   *slog.Logger
	Interval time.Duration

	// OperatorMemberID is who conflict notifyMember events are addressed
	// to.
	OperatorMemberID string
}

// Run ticks until ctx is cancelled, polling once immediately on start.
func (p *ForgePoller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	p.tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *ForgePoller) tick(ctx context.Context) {
	cursor, err := p.Store.GetCursor(models.SourceForge)
	if err != nil {
		p.log().Error("read forge cursor failed", "error", err)
		return
	}
	since, err := parseCursor(cursor)
	if err != nil {
		p.log().Warn("discarding unparseable forge cursor", "cursor", cursor, "error", err)
		since = time.Time{}
	}

	issues, err := p.Forge.ListIssuesSince(ctx, since)
	if err != nil {
		p.log().Error("list forge issues since failed", "since", since, "error", err)
		return
	}

	maxSeen := since
	for _, issue := range issues {
		if err := reconcileForgeIssue(p.Store, p.ForgeRepo, issue, p.OperatorMemberID); err != nil {
			p.log().Error("reconcile forge issue failed", "number", issue.Number, "error", err)
			continue
		}
		if issue.UpdatedAt.After(maxSeen) {
			maxSeen = issue.UpdatedAt
		}
	}
	if maxSeen.After(since) {
		if err := p.Store.SetCursor(models.SourceForge, formatCursor(maxSeen)); err != nil {
			p.log().Error("advance forge cursor failed", "error", err)
		}
	}
}

func (p *ForgePoller) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run ticks until ctx is cancelled, polling once immediately on start.
func (p *SheetPoller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	p.tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *SheetPoller) tick(ctx context.Context) {
	tables, err := p.Store.ListTableRegistry()
	if err != nil {
		p.log().Error("list table registry failed", "error", err)
		return
	}

	cursor, err := p.Store.GetCursor(models.SourceSheet)
	if err != nil {
		p.log().Error("read sheet cursor failed", "error", err)
		return
	}
	since, err := parseCursor(cursor)
	if err != nil {
		p.log().Warn("discarding unparseable sheet cursor", "cursor", cursor, "error", err)
		since = time.Time{}
	}

	maxSeen := since
	for i := range tables {
		entry := &tables[i]
		queryFrom := since
		if !entry.SupportsSinceQuery {
			// Full-scan-with-hashing fallback: the table can't filter
			// server-side, so every record in the table is re-evaluated
			// and reconcileSheetRecord's updatedAt comparison does the
			// filtering locally.
			queryFrom = time.Time{}
		}
		records, err := p.Sheet.SearchRecords(ctx, entry.AppToken, entry.TableID, queryFrom)
		if err != nil {
			p.log().Error("search sheet records failed", "appToken", entry.AppToken, "tableId", entry.TableID, "error", err)
			continue
		}
		for _, rec := range records {
			if err := reconcileSheetRecord(p.Store, entry, rec, p.OperatorMemberID); err != nil {
				p.log().Error("reconcile sheet record failed", "recordId", rec.RecordID, "error", err)
				continue
			}
			if rec.UpdatedAt.After(maxSeen) {
				maxSeen = rec.UpdatedAt
			}
		}
	}
	if maxSeen.After(since) {
		if err := p.Store.SetCursor(models.SourceSheet, formatCursor(maxSeen)); err != nil {
			p.log().Error("advance sheet cursor failed", "error", err)
		}
	}
}

func (p *SheetPoller) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Package mapper holds the pure, deterministic functions that translate
// between forge-issue shape, spreadsheet-row shape, and the internal Task
// shape — the status lattice is the single source of truth both
// directions share.
package mapper

import (
	"strings"

	"synctl/internal/models"
)

// Sheet-side literal status strings.
const (
	SheetStatusToDo       = "To Do"
	SheetStatusInProgress = "In Progress"
	SheetStatusDone       = "Done"
	SheetStatusCancelled  = "Cancelled"
)

// ForgeState describes the write side of the forge status mapping.
type ForgeState struct {
	State       string // "open" or "closed"
	StateReason string // "" , "completed", or "not_planned"
}

// InternalStatusToForge maps an internal status to the forge write shape.
// ToDo and InProgress both map to "open" — the distinction only exists
// locally and on the sheet side.
func InternalStatusToForge(status string) ForgeState {
	switch status {
	case models.StatusDone:
		return ForgeState{State: "closed", StateReason: "completed"}
	case models.StatusCancelled:
		return ForgeState{State: "closed", StateReason: "not_planned"}
	default:
		return ForgeState{State: "open"}
	}
}

// ForgeToInternalStatus maps a forge read shape back to an internal
// status. On "open", it preserves InProgress when the existing task was
// already InProgress; otherwise defaults to ToDo.
func ForgeToInternalStatus(state, stateReason string, existing *models.Task) string {
	if state == "closed" {
		if stateReason == "not_planned" {
			return models.StatusCancelled
		}
		return models.StatusDone
	}
	if existing != nil && existing.Status == models.StatusInProgress {
		return models.StatusInProgress
	}
	return models.StatusToDo
}

// InternalStatusToSheet maps an internal status to the sheet's literal
// status-column string.
func InternalStatusToSheet(status string) string {
	switch status {
	case models.StatusToDo:
		return SheetStatusToDo
	case models.StatusInProgress:
		return SheetStatusInProgress
	case models.StatusDone:
		return SheetStatusDone
	case models.StatusCancelled:
		return SheetStatusCancelled
	default:
		return SheetStatusToDo
	}
}

// SheetToInternalStatus maps a sheet status-column string back to an
// internal status. Returns ok=false when the value falls outside the
// lattice, so the caller can record the conflict
// malformed-remote-data rule instead of guessing.
func SheetToInternalStatus(raw string) (status string, ok bool) {
	normalized := strings.ToLower(strings.ReplaceAll(raw, " ", ""))
	switch normalized {
	case "todo":
		return models.StatusToDo, true
	case "inprogress":
		return models.StatusInProgress, true
	case "done":
		return models.StatusDone, true
	case "cancelled", "canceled":
		return models.StatusCancelled, true
	default:
		return "", false
	}
}

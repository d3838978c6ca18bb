package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseIssueNumber parses a forgeIssueRef of the form "owner/repo#123"
// or a bare "123", returning the issue number.
func parseIssueNumber(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if idx := strings.LastIndex(ref, "#"); idx >= 0 {
		ref = ref[idx+1:]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid forge issue ref %q: %w", ref, err)
	}
	return n, nil
}

// parseSheetRecordRef parses a sheetRecordRef of the form
// "appToken/tableId/recordId".
func parseSheetRecordRef(ref string) (appToken, tableID, recordID string, err error) {
	parts := strings.SplitN(ref, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid sheet record ref %q: expected appToken/tableId/recordId", ref)
	}
	return parts[0], parts[1], parts[2], nil
}

func timeNowAdd(d time.Duration) time.Time {
	return time.Now().Add(d)
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"synctl/internal/models"
)

// registryFile is the on-disk shape of registry.yaml: a list of sheet
// tables with their per-table field overrides, named exactly as
// names them (title_field, status_field, assignee_field,
// github_issue_field, last_sync_field) rather than as the internal
// FieldNameMap keys, since operators think in terms of their own sheet's
// column names.
type registryFile struct {
	Tables []registryTable `yaml:"tables"`
}

type registryTable struct {
	AppToken          string `yaml:"app_token"`
	TableID           string `yaml:"table_id"`
	DisplayName       string `yaml:"display_name"`
	Default           bool   `yaml:"default"`
	SupportsSince     *bool  `yaml:"supports_since_query"`
	TitleField        string `yaml:"title_field"`
	StatusField       string `yaml:"status_field"`
	AssigneeField     string `yaml:"assignee_field"`
	GitHubIssueField  string `yaml:"github_issue_field"`
	LastSyncField     string `yaml:"last_sync_field"`
}

// LoadRegistry reads registry.yaml at path and returns one
// SheetTableRegistryEntry per table entry, ready to be upserted with
// Store.UpsertTableRegistryEntry.
func LoadRegistry(path string) ([]models.SheetTableRegistryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read registry file: %w", err)
	}

	var raw registryFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse registry file: %w", err)
	}

	entries := make([]models.SheetTableRegistryEntry, 0, len(raw.Tables))
	for _, t := range raw.Tables {
		if t.AppToken == "" || t.TableID == "" {
			return nil, fmt.Errorf("config: registry entry missing app_token or table_id")
		}
		fieldMap := models.StringMap{}
		putField(fieldMap, "title", t.TitleField)
		putField(fieldMap, "status", t.StatusField)
		putField(fieldMap, "assignee", t.AssigneeField)
		putField(fieldMap, "githubIssue", t.GitHubIssueField)
		putField(fieldMap, "lastSync", t.LastSyncField)

		supportsSince := true
		if t.SupportsSince != nil {
			supportsSince = *t.SupportsSince
		}

		entries = append(entries, models.SheetTableRegistryEntry{
			AppToken:           t.AppToken,
			TableID:            t.TableID,
			DisplayName:        t.DisplayName,
			FieldNameMap:       fieldMap,
			IsDefault:          t.Default,
			SupportsSinceQuery: supportsSince,
		})
	}
	return entries, nil
}

func putField(m models.StringMap, key, value string) {
	if value != "" {
		m[key] = value
	}
}

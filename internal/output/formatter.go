package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"synctl/internal/intent"
	"synctl/internal/models"
)

// Formatter defines the interface for output formatting. Mutating CLI
// commands call Success/Error; read commands call the typed views.
type Formatter interface {
	Task(t *models.Task)
	TaskList(tasks []models.Task)
	Member(m *models.Member)
	MemberList(members []models.Member)
	Mapping(m *models.Mapping)
	MemberWork(w *intent.MemberWork)
	Success(msg string)
	Error(err error)
	Info(msg string)
	KeyValue(key, value string)
	Section(title string)
	JSON(v interface{})
}

// TextFormatter outputs human-readable text, using go-pretty tables for
// list views.
type TextFormatter struct{}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// New returns the appropriate formatter based on the json flag.
func New(jsonOutput bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &TextFormatter{}
}

// TextFormatter implementations

func (f *TextFormatter) Task(t *models.Task) {
	fmt.Printf("TaskID:   %s\n", t.TaskID)
	fmt.Printf("Title:    %s\n", t.Title)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Priority: %s\n", t.Priority)
	fmt.Printf("Source:   %s\n", t.Source)
	if t.Body != "" {
		fmt.Printf("Body:     %s\n", t.Body)
	}
	if t.AssigneeMemberID != "" {
		fmt.Printf("Assignee: %s\n", t.AssigneeMemberID)
	}
	if len(t.Labels) > 0 {
		fmt.Printf("Labels:   %s\n", strings.Join(t.Labels, ", "))
	}
	if t.TargetTable != "" {
		fmt.Printf("Table:    %s\n", t.TargetTable)
	}
	if t.DueDate != "" {
		fmt.Printf("Due:      %s\n", t.DueDate)
	}
	fmt.Printf("Progress: %d%%\n", t.Progress)
	fmt.Printf("Updated:  %s\n", t.UpdatedAt.Format(time.RFC3339))
}

func (f *TextFormatter) TaskList(tasks []models.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Task ID", "Title", "Status", "Priority", "Assignee", "Source"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.TaskID, t.Title, t.Status, t.Priority, t.AssigneeMemberID, t.Source})
	}
	tw.Render()
}

func (f *TextFormatter) Member(m *models.Member) {
	fmt.Printf("MemberID: %s\n", m.MemberID)
	fmt.Printf("Name:     %s\n", m.Name)
	fmt.Printf("Email:    %s\n", m.Email)
	fmt.Printf("Role:     %s\n", m.Role)
	fmt.Printf("Status:   %s\n", m.Status)
	if m.Team != "" {
		fmt.Printf("Team:     %s\n", m.Team)
	}
	if m.Position != "" {
		fmt.Printf("Position: %s\n", m.Position)
	}
	if m.ForgeUsername != "" {
		fmt.Printf("Forge:    %s\n", m.ForgeUsername)
	}
	if m.SheetOpenID != "" {
		fmt.Printf("Sheet:    %s\n", m.SheetOpenID)
	}
}

func (f *TextFormatter) MemberList(members []models.Member) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Member ID", "Name", "Email", "Role", "Status"})
	for _, m := range members {
		tw.AppendRow(table.Row{m.MemberID, m.Name, m.Email, m.Role, m.Status})
	}
	tw.Render()
}

func (f *TextFormatter) Mapping(m *models.Mapping) {
	fmt.Printf("MappingID:  %s\n", m.MappingID)
	fmt.Printf("TaskID:     %s\n", m.TaskID)
	fmt.Printf("SyncStatus: %s\n", m.SyncStatus)
	if m.HasForgeRef() {
		fmt.Printf("Forge:      %s#%d\n", m.ForgeRepo, m.ForgeNumber)
	}
	if m.HasSheetRef() {
		fmt.Printf("Sheet:      %s/%s/%s\n", m.SheetAppToken, m.SheetTableID, m.SheetRecordID)
	}
}

func (f *TextFormatter) MemberWork(w *intent.MemberWork) {
	fmt.Printf("%s <%s>\n\n", w.Member.Name, w.Member.Email)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Task ID", "Title", "Status", "Priority", "Forge", "Sheet"})
	for _, tm := range w.Tasks {
		forgeRef, sheetRef := "", ""
		if tm.Mapping != nil {
			if tm.Mapping.HasForgeRef() {
				forgeRef = fmt.Sprintf("%s#%d", tm.Mapping.ForgeRepo, tm.Mapping.ForgeNumber)
			}
			if tm.Mapping.HasSheetRef() {
				sheetRef = tm.Mapping.SheetRecordID
			}
		}
		tw.AppendRow(table.Row{tm.Task.TaskID, tm.Task.Title, tm.Task.Status, tm.Task.Priority, forgeRef, sheetRef})
	}
	tw.Render()
}

func (f *TextFormatter) Success(msg string) {
	fmt.Println(msg)
}

func (f *TextFormatter) Error(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func (f *TextFormatter) Info(msg string) {
	fmt.Println(msg)
}

func (f *TextFormatter) KeyValue(key, value string) {
	fmt.Printf("%s: %s\n", key, value)
}

func (f *TextFormatter) Section(title string) {
	fmt.Printf("\n%s:\n", title)
}

func (f *TextFormatter) JSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		f.Error(err)
		return
	}
	fmt.Println(string(data))
}

// JSONFormatter implementations

func (f *JSONFormatter) Task(t *models.Task) {
	f.JSON(t)
}

func (f *JSONFormatter) TaskList(tasks []models.Task) {
	f.JSON(map[string]interface{}{"count": len(tasks), "tasks": tasks})
}

func (f *JSONFormatter) Member(m *models.Member) {
	f.JSON(m)
}

func (f *JSONFormatter) MemberList(members []models.Member) {
	f.JSON(map[string]interface{}{"count": len(members), "members": members})
}

func (f *JSONFormatter) Mapping(m *models.Mapping) {
	f.JSON(m)
}

func (f *JSONFormatter) MemberWork(w *intent.MemberWork) {
	f.JSON(w)
}

func (f *JSONFormatter) Success(msg string) {
	f.JSON(map[string]interface{}{"success": true, "message": msg})
}

func (f *JSONFormatter) Error(err error) {
	f.JSON(map[string]interface{}{"error": true, "message": err.Error()})
}

func (f *JSONFormatter) Info(msg string) {
	f.JSON(map[string]interface{}{"message": msg})
}

func (f *JSONFormatter) KeyValue(key, value string) {
	f.JSON(map[string]string{key: value})
}

func (f *JSONFormatter) Section(title string) {
	// JSON output has no notion of a section header.
}

func (f *JSONFormatter) JSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, `{"error": true, "message": "JSON marshal error: %s"}`+"\n", err.Error())
		return
	}
	fmt.Println(string(data))
}

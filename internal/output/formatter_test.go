package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"synctl/internal/intent"
	"synctl/internal/models"
)

func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestNewFormatter(t *testing.T) {
	textFormatter := New(false)
	if _, ok := textFormatter.(*TextFormatter); !ok {
		t.Error("New(false) should return TextFormatter")
	}

	jsonFormatter := New(true)
	if _, ok := jsonFormatter.(*JSONFormatter); !ok {
		t.Error("New(true) should return JSONFormatter")
	}
}

func TestTextFormatterTask(t *testing.T) {
	f := &TextFormatter{}
	task := &models.Task{
		TaskID:   "tsk-test123",
		Title:    "Test Task",
		Status:   models.StatusInProgress,
		Priority: models.PriorityHigh,
		Body:     "Test description",
	}

	output := captureOutput(func() {
		f.Task(task)
	})

	if !strings.Contains(output, "tsk-test123") {
		t.Error("output should contain task ID")
	}
	if !strings.Contains(output, "Test Task") {
		t.Error("output should contain task title")
	}
	if !strings.Contains(output, models.StatusInProgress) {
		t.Error("output should contain status")
	}
}

func TestTextFormatterTaskList(t *testing.T) {
	f := &TextFormatter{}
	tasks := []models.Task{
		{TaskID: "tsk-1", Title: "First", Status: models.StatusToDo, Priority: models.PriorityMedium},
		{TaskID: "tsk-2", Title: "Second", Status: models.StatusDone, Priority: models.PriorityLow},
	}

	output := captureOutput(func() {
		f.TaskList(tasks)
	})

	if !strings.Contains(output, "tsk-1") || !strings.Contains(output, "tsk-2") {
		t.Error("output should contain both task IDs")
	}
	if !strings.Contains(output, "First") || !strings.Contains(output, "Second") {
		t.Error("output should contain both task titles")
	}
}

func TestTextFormatterMember(t *testing.T) {
	f := &TextFormatter{}
	member := &models.Member{
		MemberID: "mem-abc123",
		Name:     "Dev One",
		Email:    "dev@example.com",
		Role:     models.RoleDeveloper,
		Status:   models.MemberActive,
	}

	output := captureOutput(func() {
		f.Member(member)
	})

	if !strings.Contains(output, "mem-abc123") {
		t.Error("output should contain member ID")
	}
	if !strings.Contains(output, "dev@example.com") {
		t.Error("output should contain email")
	}
}

func TestTextFormatterMemberWork(t *testing.T) {
	f := &TextFormatter{}
	work := &intent.MemberWork{
		Member: &models.Member{MemberID: "mem-1", Name: "Dev", Email: "dev@example.com"},
		Tasks: []intent.TaskWithMapping{
			{
				Task:    models.Task{TaskID: "tsk-1", Title: "Ship it", Status: models.StatusInProgress, Priority: models.PriorityHigh},
				Mapping: &models.Mapping{ForgeRepo: "o/r", ForgeNumber: 7},
			},
		},
	}

	output := captureOutput(func() {
		f.MemberWork(work)
	})

	if !strings.Contains(output, "dev@example.com") {
		t.Error("output should contain member email")
	}
	if !strings.Contains(output, "tsk-1") {
		t.Error("output should contain the task row")
	}
	if !strings.Contains(output, "o/r#7") {
		t.Error("output should show the bound forge ref")
	}
}

func TestTextFormatterSuccess(t *testing.T) {
	f := &TextFormatter{}

	output := captureOutput(func() {
		f.Success("Operation completed")
	})

	if !strings.Contains(output, "Operation completed") {
		t.Errorf("output = %q, want to contain 'Operation completed'", output)
	}
}

func TestJSONFormatterTask(t *testing.T) {
	f := &JSONFormatter{}
	task := &models.Task{
		TaskID:   "tsk-json123",
		Title:    "JSON Task",
		Status:   models.StatusDone,
		Priority: models.PriorityLow,
	}

	output := captureOutput(func() {
		f.Task(task)
	})

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if result["taskId"] != "tsk-json123" {
		t.Errorf("taskId = %v, want tsk-json123", result["taskId"])
	}
	if result["title"] != "JSON Task" {
		t.Errorf("title = %v, want JSON Task", result["title"])
	}
}

func TestJSONFormatterTaskList(t *testing.T) {
	f := &JSONFormatter{}
	tasks := []models.Task{
		{TaskID: "tsk-1", Title: "Task 1"},
		{TaskID: "tsk-2", Title: "Task 2"},
	}

	output := captureOutput(func() {
		f.TaskList(tasks)
	})

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if result["count"].(float64) != 2 {
		t.Errorf("count = %v, want 2", result["count"])
	}

	tasksList, ok := result["tasks"].([]interface{})
	if !ok {
		t.Fatal("tasks should be an array")
	}
	if len(tasksList) != 2 {
		t.Errorf("tasks length = %d, want 2", len(tasksList))
	}
}

func TestJSONFormatterSuccess(t *testing.T) {
	f := &JSONFormatter{}

	output := captureOutput(func() {
		f.Success("Done!")
	})

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if result["success"] != true {
		t.Errorf("success = %v, want true", result["success"])
	}
	if result["message"] != "Done!" {
		t.Errorf("message = %v, want 'Done!'", result["message"])
	}
}

func TestJSONFormatterError(t *testing.T) {
	f := &JSONFormatter{}

	output := captureOutput(func() {
		f.Error(io.EOF)
	})

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if result["error"] != true {
		t.Errorf("error = %v, want true", result["error"])
	}
	if result["message"] != "EOF" {
		t.Errorf("message = %v, want 'EOF'", result["message"])
	}
}

func TestJSONFormatterMapping(t *testing.T) {
	f := &JSONFormatter{}
	mapping := &models.Mapping{MappingID: "map-1", TaskID: "tsk-1", SyncStatus: models.SyncPending}

	output := captureOutput(func() {
		f.Mapping(mapping)
	})

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if result["syncStatus"] != models.SyncPending {
		t.Errorf("syncStatus = %v, want %v", result["syncStatus"], models.SyncPending)
	}
}

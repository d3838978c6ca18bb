package cmd

import (
	"github.com/spf13/cobra"

	"synctl/internal/intent"
)

var (
	createAssignee    string
	createPriority    string
	createLabels      []string
	createBody        string
	createTargetTable string
	createDueDate     string
	createAlsoConvert bool
)

var createCmd = &cobra.Command{
	Use:   "create \"title\"",
	Short: "Create a new task",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createAssignee, "assignee", "a", "", "assignee email")
	createCmd.Flags().StringVarP(&createPriority, "priority", "p", "", "priority (critical/high/medium/low)")
	createCmd.Flags().StringArrayVarP(&createLabels, "label", "l", nil, "label (repeatable)")
	createCmd.Flags().StringVarP(&createBody, "body", "b", "", "task body")
	createCmd.Flags().StringVar(&createTargetTable, "table", "", "target sheet table (appToken/tableId)")
	createCmd.Flags().StringVar(&createDueDate, "due", "", "due date")
	createCmd.Flags().BoolVar(&createAlsoConvert, "also-convert", false, "also push the task to the forge side immediately")
}

func runCreate(cmd *cobra.Command, args []string) error {
	taskID, err := svc.CreateTask(intent.CreateTaskParams{
		Title:         args[0],
		Body:          createBody,
		AssigneeEmail: createAssignee,
		Priority:      createPriority,
		Labels:        createLabels,
		TargetTable:   createTargetTable,
		DueDate:       createDueDate,
		AlsoConvert:   createAlsoConvert,
	})
	if err != nil {
		return err
	}

	task, err := st.FindTaskByID(taskID)
	if err != nil {
		return err
	}
	formatter().Task(task)
	return nil
}

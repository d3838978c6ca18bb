package cmd

import (
	"github.com/spf13/cobra"

	"synctl/internal/intent"
)

var (
	updateTitle    string
	updateBody     string
	updateStatus   string
	updateAssignee string
	updatePriority string
	updateDueDate  string
	updateProgress int
	updateLabels   []string
)

var updateCmd = &cobra.Command{
	Use:   "update <taskId>",
	Short: "Update a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	updateCmd.Flags().StringVar(&updateBody, "body", "", "new body")
	updateCmd.Flags().StringVarP(&updateStatus, "status", "s", "", "new status")
	updateCmd.Flags().StringVarP(&updateAssignee, "assignee", "a", "", "new assignee email (empty clears)")
	updateCmd.Flags().StringVarP(&updatePriority, "priority", "p", "", "new priority")
	updateCmd.Flags().StringVar(&updateDueDate, "due", "", "new due date")
	updateCmd.Flags().IntVar(&updateProgress, "progress", -1, "new progress (0-100)")
	updateCmd.Flags().StringArrayVar(&updateLabels, "label", nil, "replace labels (repeatable)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	patch := intent.TaskPatch{}
	if cmd.Flags().Changed("title") {
		patch.Title = &updateTitle
	}
	if cmd.Flags().Changed("body") {
		patch.Body = &updateBody
	}
	if cmd.Flags().Changed("status") {
		patch.Status = &updateStatus
	}
	if cmd.Flags().Changed("assignee") {
		patch.AssigneeEmail = &updateAssignee
	}
	if cmd.Flags().Changed("priority") {
		patch.Priority = &updatePriority
	}
	if cmd.Flags().Changed("due") {
		patch.DueDate = &updateDueDate
	}
	if cmd.Flags().Changed("progress") {
		patch.Progress = &updateProgress
	}
	if cmd.Flags().Changed("label") {
		patch.Labels = &updateLabels
	}

	task, err := svc.UpdateTask(args[0], patch)
	if err != nil {
		return err
	}
	formatter().Task(task)
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"synctl/internal/models"
)

var (
	closeReason     string
	closeCancelled  bool
)

var closeCmd = &cobra.Command{
	Use:   "close <taskId>",
	Short: "Close a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
	closeCmd.Flags().StringVarP(&closeReason, "reason", "r", "", "reason for closing")
	closeCmd.Flags().BoolVar(&closeCancelled, "cancelled", false, "close as Cancelled instead of Done")
	_ = closeCmd.MarkFlagRequired("reason")
}

func runClose(cmd *cobra.Command, args []string) error {
	status := models.StatusDone
	if closeCancelled {
		status = models.StatusCancelled
	}

	task, err := svc.CloseTask(args[0], status, closeReason)
	if err != nil {
		return err
	}
	formatter().Task(task)
	return nil
}

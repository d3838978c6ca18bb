package cmd

import (
	"github.com/spf13/cobra"

	"synctl/internal/store"
)

var (
	listStatus      string
	listAssignee    string
	listTargetTable string
	listSource      string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List tasks",
	Aliases: []string{"ls"},
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	listCmd.Flags().StringVarP(&listAssignee, "assignee", "a", "", "filter by assignee memberId")
	listCmd.Flags().StringVar(&listTargetTable, "table", "", "filter by target table")
	listCmd.Flags().StringVar(&listSource, "source", "", "filter by source")
}

func runList(cmd *cobra.Command, args []string) error {
	tasks, err := svc.ListTasks(store.TaskFilter{
		Status:           listStatus,
		AssigneeMemberID: listAssignee,
		TargetTable:      listTargetTable,
		Source:           listSource,
	})
	if err != nil {
		return err
	}
	formatter().TaskList(tasks)
	return nil
}

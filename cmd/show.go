package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <taskId>",
	Short: "Show a task and its sync mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	task, err := st.FindTaskByID(args[0])
	if err != nil {
		return fmt.Errorf("task not found: %s", args[0])
	}

	mapping, err := st.GetMappingByTask(task.TaskID)
	if err != nil {
		mapping = nil
	}

	if IsJSONOutput() {
		formatter().JSON(map[string]interface{}{
			"task":    task,
			"mapping": mapping,
		})
		return nil
	}

	formatter().Task(task)
	if mapping != nil {
		formatter().Mapping(mapping)
	}
	return nil
}

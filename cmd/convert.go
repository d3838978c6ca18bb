package cmd

import (
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an item that exists on one side to the other",
}

var convertForgeToSheetCmd = &cobra.Command{
	Use:   "forge-to-sheet <owner/repo#number> <appToken/tableId>",
	Short: "Create a sheet record from an existing forge issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.ConvertForgeToSheet(args[0], args[1]); err != nil {
			return err
		}
		formatter().Success("queued: " + args[0] + " -> " + args[1])
		return nil
	},
}

var convertSheetToForgeCmd = &cobra.Command{
	Use:   "sheet-to-forge <appToken/tableId/recordId>",
	Short: "Create a forge issue from an existing sheet record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.ConvertSheetToForge(args[0]); err != nil {
			return err
		}
		formatter().Success("queued: " + args[0] + " -> forge")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.AddCommand(convertForgeToSheetCmd)
	convertCmd.AddCommand(convertSheetToForgeCmd)
}

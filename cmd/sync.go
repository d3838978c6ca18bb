package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"synctl/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect and operate on the outbox",
}

var syncRetryLimit int

var syncRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Requeue failed-but-not-dead outbox events for another attempt",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := st.RequeueFailed(syncRetryLimit)
		if err != nil {
			return err
		}
		formatter().Success(fmt.Sprintf("requeued %d event(s)", n))
		return nil
	},
}

var syncStatusLimit int

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending and dead outbox events",
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := st.ListOutboxByStatus(models.OutboxPending, syncStatusLimit)
		if err != nil {
			return err
		}
		dead, err := st.ListOutboxByStatus(models.OutboxDead, syncStatusLimit)
		if err != nil {
			return err
		}
		formatter().JSON(map[string]interface{}{
			"pending": pending,
			"dead":    dead,
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRetryCmd)
	syncCmd.AddCommand(syncStatusCmd)

	syncRetryCmd.Flags().IntVar(&syncRetryLimit, "limit", 100, "maximum events to requeue")
	syncStatusCmd.Flags().IntVar(&syncStatusLimit, "limit", 20, "maximum events to show per status")
}

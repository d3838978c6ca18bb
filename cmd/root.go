package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"synctl/internal/cli"
	"synctl/internal/config"
	"synctl/internal/intent"
	"synctl/internal/output"
	"synctl/internal/store"
)

var (
	Version    = "0.1.0"
	jsonOutput bool

	cfg *config.Config
	st  *store.Store
	svc *intent.Service
)

// commandsExemptFromDB lists commands that don't need the store opened
// (and so shouldn't fail if it can't be, e.g. before first configuration).
var commandsExemptFromDB = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

var rootCmd = &cobra.Command{
	Use:   "synctl",
	Short: "synctl keeps a forge issue tracker and a sheet database in sync",
	Long: `synctl is a two-store task synchronizer: it keeps a GitHub-like issue
tracker and a Lark/Feishu-like spreadsheet database in agreement about a
shared set of work items.

QUICK START:
  synctl create "Fix bug" --assignee dev@example.com
  synctl list --status ToDo
  synctl update <taskId> --status InProgress
  synctl close <taskId> --reason "shipped"
  synctl daemon                          # run the dispatcher + reconciler loop

JSON OUTPUT: add --json to any command for machine-readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if commandsExemptFromDB[cmd.Name()] {
			return nil
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		s, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		st = s
		svc = intent.New(st)
		return nil
	},
}

func Execute() {
	defer func() {
		if st != nil {
			st.Close()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		formatter().Error(err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.Version = Version
}

func formatter() output.Formatter {
	return output.New(jsonOutput)
}

// IsJSONOutput reports whether --json was passed, for subcommands that
// branch on output shape directly rather than through the Formatter.
func IsJSONOutput() bool {
	return jsonOutput
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"synctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update stored configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the currently loaded configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		githubTokenSet := cfg.GitHubToken != ""
		larkSecretSet := cfg.LarkAppSecret != ""

		if IsJSONOutput() {
			formatter().JSON(map[string]interface{}{
				"github_owner":          cfg.GitHubOwner,
				"github_repo":           cfg.GitHubRepo,
				"github_token_set":      githubTokenSet,
				"lark_app_id":           cfg.LarkAppID,
				"lark_auth_mode":        cfg.LarkAuthMode,
				"lark_app_secret_set":   larkSecretSet,
				"lark_default_app_token": cfg.LarkDefaultAppToken,
				"lark_default_table_id": cfg.LarkDefaultTableID,
				"db_path":               cfg.DBPath,
				"interval":              cfg.Interval.String(),
				"retry_max_attempts":    cfg.RetryMaxAttempts,
			})
			return nil
		}

		fmt.Println("Forge (GitHub):")
		fmt.Printf("  Owner/Repo: %s/%s\n", cfg.GitHubOwner, cfg.GitHubRepo)
		fmt.Printf("  Token:      %s\n", secretStatus(githubTokenSet))
		fmt.Println("Sheet (Lark/Feishu):")
		fmt.Printf("  App ID:     %s\n", cfg.LarkAppID)
		fmt.Printf("  Auth mode:  %s\n", cfg.LarkAuthMode)
		fmt.Printf("  Secret:     %s\n", secretStatus(larkSecretSet))
		fmt.Printf("  Default table: %s/%s\n", cfg.LarkDefaultAppToken, cfg.LarkDefaultTableID)
		fmt.Println("Daemon:")
		fmt.Printf("  Database:   %s\n", cfg.DBPath)
		fmt.Printf("  Interval:   %s\n", cfg.Interval)
		fmt.Printf("  Retries:    %d\n", cfg.RetryMaxAttempts)
		return nil
	},
}

func secretStatus(set bool) string {
	if set {
		return "(stored)"
	}
	return "(not configured)"
}

var configSetGitHubTokenCmd = &cobra.Command{
	Use:   "set-github-token <token>",
	Short: "Store the forge personal access token in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetGitHubToken(args[0]); err != nil {
			return fmt.Errorf("failed to store token in keyring: %w", err)
		}
		formatter().Success("GitHub token stored in system keyring")
		return nil
	},
}

var configSetLarkSecretCmd = &cobra.Command{
	Use:   "set-lark-secret <secret>",
	Short: "Store the sheet app secret in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetLarkAppSecret(args[0]); err != nil {
			return fmt.Errorf("failed to store secret in keyring: %w", err)
		}
		formatter().Success("Lark app secret stored in system keyring")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetGitHubTokenCmd)
	configCmd.AddCommand(configSetLarkSecretCmd)
}

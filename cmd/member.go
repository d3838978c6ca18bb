package cmd

import (
	"github.com/spf13/cobra"

	"synctl/internal/intent"
	"synctl/internal/store"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage members",
}

var (
	memberCreateName          string
	memberCreateRole          string
	memberCreateTeam          string
	memberCreatePosition      string
	memberCreateForgeUsername string
	memberCreateSheetOpenID   string
)

var memberCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		member, err := svc.CreateMember(intent.CreateMemberParams{
			Email:         args[0],
			Name:          memberCreateName,
			Role:          memberCreateRole,
			Team:          memberCreateTeam,
			Position:      memberCreatePosition,
			ForgeUsername: memberCreateForgeUsername,
			SheetOpenID:   memberCreateSheetOpenID,
		})
		if err != nil {
			return err
		}
		formatter().Member(member)
		return nil
	},
}

var (
	memberUpdateName          string
	memberUpdateRole          string
	memberUpdateTeam          string
	memberUpdatePosition      string
	memberUpdateForgeUsername string
	memberUpdateSheetOpenID   string
)

var memberUpdateCmd = &cobra.Command{
	Use:   "update <memberId>",
	Short: "Update a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := intent.MemberPatch{}
		if cmd.Flags().Changed("name") {
			patch.Name = &memberUpdateName
		}
		if cmd.Flags().Changed("role") {
			patch.Role = &memberUpdateRole
		}
		if cmd.Flags().Changed("team") {
			patch.Team = &memberUpdateTeam
		}
		if cmd.Flags().Changed("position") {
			patch.Position = &memberUpdatePosition
		}
		if cmd.Flags().Changed("forge-username") {
			patch.ForgeUsername = &memberUpdateForgeUsername
		}
		if cmd.Flags().Changed("sheet-open-id") {
			patch.SheetOpenID = &memberUpdateSheetOpenID
		}
		member, err := svc.UpdateMember(args[0], patch)
		if err != nil {
			return err
		}
		formatter().Member(member)
		return nil
	},
}

var memberDeactivateCmd = &cobra.Command{
	Use:   "deactivate <memberId>",
	Short: "Deactivate a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		member, err := svc.DeactivateMember(args[0])
		if err != nil {
			return err
		}
		formatter().Member(member)
		return nil
	},
}

var (
	memberListRole   string
	memberListTeam   string
	memberListStatus string
)

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members",
	RunE: func(cmd *cobra.Command, args []string) error {
		members, err := svc.ListMembers(store.MemberFilter{
			Status: memberListStatus,
			Role:   memberListRole,
			Team:   memberListTeam,
		})
		if err != nil {
			return err
		}
		formatter().MemberList(members)
		return nil
	},
}

var memberWorkCmd = &cobra.Command{
	Use:   "work <memberIdentifier>",
	Short: "Show a member's assigned tasks and their sync bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		work, err := svc.GetMemberWork(args[0])
		if err != nil {
			return err
		}
		formatter().MemberWork(work)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memberCmd)
	memberCmd.AddCommand(memberCreateCmd)
	memberCmd.AddCommand(memberUpdateCmd)
	memberCmd.AddCommand(memberDeactivateCmd)
	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberWorkCmd)

	memberCreateCmd.Flags().StringVar(&memberCreateName, "name", "", "display name")
	memberCreateCmd.Flags().StringVar(&memberCreateRole, "role", "", "role")
	memberCreateCmd.Flags().StringVar(&memberCreateTeam, "team", "", "team")
	memberCreateCmd.Flags().StringVar(&memberCreatePosition, "position", "", "position")
	memberCreateCmd.Flags().StringVar(&memberCreateForgeUsername, "forge-username", "", "forge username")
	memberCreateCmd.Flags().StringVar(&memberCreateSheetOpenID, "sheet-open-id", "", "sheet open id")

	memberUpdateCmd.Flags().StringVar(&memberUpdateName, "name", "", "display name")
	memberUpdateCmd.Flags().StringVar(&memberUpdateRole, "role", "", "role")
	memberUpdateCmd.Flags().StringVar(&memberUpdateTeam, "team", "", "team")
	memberUpdateCmd.Flags().StringVar(&memberUpdatePosition, "position", "", "position")
	memberUpdateCmd.Flags().StringVar(&memberUpdateForgeUsername, "forge-username", "", "forge username")
	memberUpdateCmd.Flags().StringVar(&memberUpdateSheetOpenID, "sheet-open-id", "", "sheet open id")

	memberListCmd.Flags().StringVar(&memberListStatus, "status", "", "filter by status")
	memberListCmd.Flags().StringVar(&memberListRole, "role", "", "filter by role")
	memberListCmd.Flags().StringVar(&memberListTeam, "team", "", "filter by team")
}

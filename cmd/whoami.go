package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami <emailOrMemberId>",
	Short: "Show a member's resolved forge/sheet bindings",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	work, err := svc.GetMemberWork(args[0])
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		formatter().JSON(work)
		return nil
	}

	m := work.Member
	fmt.Printf("Member:   %s (%s)\n", m.Name, m.Email)
	fmt.Printf("Role:     %s\n", m.Role)
	fmt.Printf("Team:     %s\n", m.Team)
	fmt.Printf("Status:   %s\n", m.Status)
	if m.ForgeUsername != "" {
		fmt.Printf("Forge:    @%s\n", m.ForgeUsername)
	} else {
		fmt.Println("Forge:    (not bound)")
	}
	if m.SheetOpenID != "" {
		fmt.Printf("Sheet:    %s\n", m.SheetOpenID)
	} else {
		fmt.Println("Sheet:    (not bound)")
	}
	fmt.Printf("Assigned tasks: %d\n", len(work.Tasks))

	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all data for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("reset deletes every attempt, quest and point award; pass --yes to confirm")
		}
		rt, err := open(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.store.Reset(cmd.Context(), rt.user); err != nil {
			return err
		}
		fmt.Printf("Reset data for %s\n", rt.user)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm deletion")
}

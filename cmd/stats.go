package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harshilgor/testtaker-sub001/internal/ui/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mastery, streak and quests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := open(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.warm(ctx); err != nil {
			return err
		}
		if err := rt.flush(ctx); err != nil {
			return err
		}
		snap, err := rt.engine.Snapshot(ctx, rt.user)
		if err != nil {
			return err
		}
		report.Snapshot(os.Stdout, snap, time.Now())
		return nil
	},
}

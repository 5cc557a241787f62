package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark inactive chains stale",
	Long:  "Flips active chains with no activity inside the configured window to stale.\nMeant to run from cron or the ops scheduler.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.sweeper.MarkStaleChains(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d chain(s) stale.\n", n)
		return nil
	},
}

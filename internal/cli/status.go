package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.events.Count(cmd.Context())
		if err != nil {
			return err
		}
		counts, err := a.repo.StatusCounts(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("db: %s\n", a.cfg.Paths.DBPath)
		fmt.Printf("chronicle events: %d\n", events)
		for _, s := range []string{"active", "resolved", "stale", "superseded"} {
			fmt.Printf("%s chains: %s %d\n", s, statusDot(s), counts[s])
		}
		return nil
	},
}

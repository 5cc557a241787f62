package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrsingh86/chronicled/internal/chain"
)

var resolveStale bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <chain-id> [summary...]",
	Short: "Manually close out a chain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		status := chain.StatusResolved
		if resolveStale {
			status = chain.StatusStale
		}
		summary := strings.Join(args[1:], " ")
		if err := a.service.UpdateStatus(cmd.Context(), args[0], status, summary); err != nil {
			return err
		}
		fmt.Printf("Chain %s marked %s.\n", args[0], status)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveStale, "stale", false, "mark the chain stale instead of resolved")
}

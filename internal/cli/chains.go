package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrsingh86/chronicled/internal/chain"
)

var chainsAll bool

var chainsCmd = &cobra.Command{
	Use:   "chains <shipment-id>",
	Short: "Show the narrative chains of a shipment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var chains []chain.Chain
		if chainsAll {
			chains, err = a.service.AllChains(cmd.Context(), args[0])
		} else {
			chains, err = a.service.ActiveChains(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		if len(chains) == 0 {
			fmt.Printf("No chains for %s.\n", args[0])
			return nil
		}
		for _, c := range chains {
			fmt.Printf("%s %s  %s\n", statusDot(string(c.Status)), c.Type, c.Headline)
			fmt.Printf("    %s  (%d days in state, confidence %d%%)\n", c.CurrentState, c.DaysInCurrentState, c.Confidence)
			if len(c.Events) > 0 {
				fmt.Printf("    %d linked event(s), trigger %d day(s) ago\n", len(c.Events), c.Trigger.DaysAgo)
			}
		}
		return nil
	},
}

func statusDot(status string) string {
	switch status {
	case "active":
		return color.GreenString("●")
	case "resolved":
		return color.BlueString("●")
	case "stale":
		return color.YellowString("●")
	case "superseded":
		return color.HiBlackString("●")
	default:
		return "●"
	}
}

func init() {
	chainsCmd.Flags().BoolVar(&chainsAll, "all", false, "include resolved, stale, and superseded chains")
}

package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrsingh86/chronicled/internal/chain"
)

var detectCmd = &cobra.Command{
	Use:   "detect <shipment-id>",
	Short: "Run a chain detection pass for one shipment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.service.DetectChainsForShipment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResult(args[0], result.Chains, result.Notices)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <shipment-id>",
	Short: "Supersede auto-detected chains and re-run detection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.service.RefreshChains(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResult(args[0], result.Chains, result.Notices)
		return nil
	},
}

func printResult(shipmentID string, chains []chain.Chain, notices []chain.Notice) {
	if len(chains) == 0 {
		fmt.Printf("No chains detected for %s.\n", shipmentID)
	}
	for _, c := range chains {
		fmt.Printf("%s %s  %s  [%d%%]\n", statusDot(string(c.Status)), c.Type, c.Headline, c.Confidence)
		fmt.Printf("    %s\n", c.CurrentState)
	}
	for _, n := range notices {
		color.Yellow("  notice: event %s: %s", n.EventID, n.Reason)
	}
}

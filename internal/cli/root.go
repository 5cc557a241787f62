// Package cli implements the chronicled command line.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/mrsingh86/chronicled/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"       _                      _      _          _\n" +
		"   ___| |__  _ __ ___  _ __  (_) ___| | ___  __| |\n" +
		"  / __| '_ \\| '__/ _ \\| '_ \\ | |/ __| |/ _ \\/ _` |\n" +
		" | (__| | | | | | (_) | | | || | (__| |  __/ (_| |\n" +
		"  \\___|_| |_|_|  \\___/|_| |_||_|\\___|_|\\___|\\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "chronicled",
	Short: "chronicled - freight shipment narrative chains",
	Long:  color.CyanString(logo) + "\nDetects causally-linked narrative chains in classified shipment correspondence.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(chainsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statusCmd)
}

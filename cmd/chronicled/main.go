// Package main is the entry point for the chronicled CLI.
package main

import (
	"os"

	"github.com/mrsingh86/chronicled/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

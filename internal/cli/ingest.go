package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrsingh86/chronicled/internal/chronicle"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <events.jsonl>",
	Short: "Seed chronicle events from a JSON lines file",
	Long:  "Reads one chronicle event per line and inserts it into the event store.\nNormally the classification pipeline writes this table; ingest exists for backfills and local testing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		var inserted, skipped int
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var e chronicle.Event
			if err := json.Unmarshal(raw, &e); err != nil {
				fmt.Fprintf(os.Stderr, "line %d: bad event: %v\n", line, err)
				skipped++
				continue
			}
			if err := a.events.Insert(cmd.Context(), e); err != nil {
				fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
				skipped++
				continue
			}
			inserted++
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		fmt.Printf("Inserted %d event(s), skipped %d.\n", inserted, skipped)
		return nil
	},
}

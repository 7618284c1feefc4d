package commands

import (
	"encoding/json"
	"fmt"
	"slotwatch/internal/scanner"
	"slotwatch/lib/restyutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scanJson bool
	scanDump string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Fetch the page and print the slots found on it without touching the store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var dump restyutil.Output
		if scanDump != "" {
			output, err := restyutil.NewFilesystemOutput(scanDump)
			if err != nil {
				return err
			}
			dump = output
		}

		client, err := initScraper(config, dump, tel)
		if err != nil {
			return err
		}
		texts, err := client.Scrape(cmd.Context())
		if err != nil {
			return err
		}
		found := scanner.Scan(texts)

		out := cmd.OutOrStdout()
		if scanJson {
			return json.NewEncoder(out).Encode(found)
		}

		t := newTable(out)
		t.AppendHeader(table.Row{"#", "Slot"})
		for i, slot := range found {
			t.AppendRow(table.Row{i + 1, slot})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d slots", len(found))})
		t.Render()
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJson, "json", false, "print the slots as a JSON array")
	scanCmd.Flags().StringVar(&scanDump, "dump", "", "write every http exchange into this directory")
}

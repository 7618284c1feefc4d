package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every slot recorded in the store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closer, err := initStore(ctx, config, clock, tel)
		if err != nil {
			return err
		}
		defer closer()

		stored, err := store.List(ctx)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"#", "Slot"})
		for i, slot := range stored {
			t.AppendRow(table.Row{i + 1, slot})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d slots", len(stored))})
		t.Render()
		return nil
	},
}

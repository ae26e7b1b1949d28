package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// newReportCommand shows the per-type readiness of an item's
// derivatives.
func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report <item-id>",
		Short: "Show derivative readiness for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			coord, err := ctx.coordinator()
			if err != nil {
				return err
			}
			report, err := coord.ItemReport(cmd.Context(), itemID, "")
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(report))
			for key := range report {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				state := report[key]
				availability := "infeasible"
				switch {
				case state.Ready:
					availability = "ready"
				case state.InProgress:
					availability = "building"
				case state.Feasible:
					availability = "buildable"
				}
				size := ""
				if state.Size != nil {
					size = strconv.FormatInt(*state.Size, 10)
				}
				rows = append(rows, []string{key, string(state.Mode), availability, size, state.File})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Type", "Mode", "State", "Size", "File"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"derivate/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Base path:     %s\n", cfg.Paths.BasePath)
			fmt.Fprintf(out, "Data dir:      %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "HTTP bind:     %s\n", cfg.Paths.HTTPBind)
			fmt.Fprintf(out, "Enabled types: %s\n", strings.Join(cfg.Derivatives.Enabled, ", "))
			fmt.Fprintf(out, "Threshold:     %d MB\n", cfg.Derivatives.ThresholdMB)
			fmt.Fprintln(out)

			rows := make([][]string, 0, 2)
			for _, status := range deps.Check(cfg) {
				availability := "missing"
				if status.Available {
					availability = "ok"
				} else if status.Optional {
					availability = "missing (optional)"
				}
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				rows = append(rows, []string{status.Name, status.Command, availability, detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

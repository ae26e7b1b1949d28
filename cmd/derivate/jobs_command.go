package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			jobs, err := st.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				target := ""
				if job.ItemID != 0 {
					target = "item " + strconv.FormatInt(job.ItemID, 10)
				}
				if job.MediaID != 0 {
					target = "media " + strconv.FormatInt(job.MediaID, 10)
				}
				rows = append(rows, []string{
					job.ID[:8],
					string(job.Kind),
					target,
					job.TypeKey,
					string(job.Status),
					job.CreatedAt.Local().Format(time.DateTime),
					job.Error,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Job", "Kind", "Target", "Type", "Status", "Created", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"derivate/internal/store"
)

// newTranscodeCommand queues audio/video transcodes for a media or a
// whole item.
func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	var mediaID int64

	cmd := &cobra.Command{
		Use:   "transcode [item-id]",
		Short: "Queue audio/video transcodes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			job := store.Job{Kind: store.JobTranscodeMedia, MediaID: mediaID}
			if len(args) == 1 {
				itemID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", args[0])
				}
				job = store.Job{Kind: store.JobTranscodeItem, ItemID: itemID}
			} else if mediaID == 0 {
				return fmt.Errorf("provide an item id or --media")
			}

			queued, err := st.EnqueueJob(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s\n", queued.Kind, queued.ID)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&mediaID, "media", "m", 0, "Transcode a single media by id")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"derivate/internal/ready"
)

// newBuildCommand requests an item-level derivative through the same
// state machine the HTTP endpoint uses.
func newBuildCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var prepare bool

	cmd := &cobra.Command{
		Use:   "build <item-id> [type...]",
		Short: "Build or queue item-level derivatives",
		Long: "Build or queue item-level derivatives.\n\n" +
			"With a single type the build may run inline; with several types,\n" +
			"or none (meaning every enabled item-level type), builds are queued\n" +
			"for a running daemon.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			coord, err := ctx.coordinator()
			if err != nil {
				return err
			}

			if len(args) != 2 {
				states, err := coord.PrepareItem(cmd.Context(), itemID, args[1:])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(states) == 0 {
					fmt.Fprintln(out, "Nothing to build.")
					return nil
				}
				keys := make([]string, 0, len(states))
				for key := range states {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(out, "%s: %s\n", key, states[key])
				}
				return nil
			}

			result, err := coord.Handle(cmd.Context(), ready.Request{
				TypeKey: args[1],
				ItemID:  itemID,
				Force:   force,
				Prepare: prepare,
			})
			if err != nil {
				if errors.Is(err, ready.ErrInProgress) {
					fmt.Fprintln(cmd.OutOrStdout(), "A build is already in progress; try again later.")
					return nil
				}
				return err
			}

			out := cmd.OutOrStdout()
			switch result.State {
			case ready.StateReady:
				fmt.Fprintf(out, "Derivative ready: %s\n", result.Path)
			case ready.StateQueued:
				fmt.Fprintln(out, "Build queued; a running daemon will pick it up.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if the derivative exists")
	cmd.Flags().BoolVar(&prepare, "prepare", false, "Queue the build instead of running it inline")
	return cmd
}

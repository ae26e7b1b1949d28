package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"derivate/internal/catalog"
)

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "types",
		Short:       "List the derivative type catalog",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(catalog.Keys()))
			for _, key := range catalog.Keys() {
				spec, _ := catalog.Lookup(key)
				rows = append(rows, []string{
					spec.Key,
					string(spec.Mode),
					string(spec.Level),
					spec.MediaType,
					spec.Extension,
					strconv.FormatBool(spec.SizeAware),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Type", "Mode", "Level", "Media type", "Extension", "Size aware"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

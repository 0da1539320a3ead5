package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List every tag with its use count",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			tags, err := api.Tags(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, tags)
			}

			out := cmd.OutOrStdout()
			if len(tags) == 0 {
				fmt.Fprintln(out, "no tags")
				return nil
			}
			rows := make([][]string, 0, len(tags))
			for _, tag := range tags {
				rows = append(rows, []string{tag.Name, fmt.Sprintf("%d", tag.Count)})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"TAG", "COUNT"},
				rows,
				[]columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List background jobs newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			jobs, err := api.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, jobs)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "no jobs")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					fmt.Sprintf("%d", job.ID),
					job.Description,
					job.State,
					ageOf(job.UpdatedAt),
					job.Error,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "DESCRIPTION", "STATE", "UPDATED", "ERROR"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func ageOf(timestamp string) string {
	parsed, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return humanize.Time(parsed)
}

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and catalog counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := api.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "modelkeepd %s (pid %d), up %s\n",
				status.Version, status.PID,
				humanize.Time(time.Now().Add(-time.Duration(status.UptimeSeconds)*time.Second)))
			fmt.Fprintf(out, "database: %s\n", status.DatabasePath)
			fmt.Fprintf(out, "entries: %d total, %d live, %d duplicate groups, %d running jobs\n",
				status.TotalEntries, status.LiveEntries, status.DuplicateGroups, status.RunningJobs)

			rows := make([][]string, 0, len(status.Roots))
			for _, root := range status.Roots {
				rows = append(rows, []string{root.Label, root.Path, humanize.IBytes(root.FreeBytes)})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"LABEL", "PATH", "FREE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

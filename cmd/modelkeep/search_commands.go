package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"modelkeep/internal/client"
)

type searchFlags struct {
	page   int64
	count  int64
	asJSON bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.page, "page", 1, "Result page (1-based)")
	cmd.Flags().Int64Var(&f.count, "count", 0, "Results per page (0 uses the daemon default)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Emit JSON instead of a table")
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags
	var tagsOnly bool

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search the catalog by name and tags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) > 0 {
				text = args[0]
			}
			return runSearch(ctx, cmd, client.SearchQuery{
				Text:    text,
				Page:    flags.page,
				Count:   flags.count,
				TagOnly: tagsOnly,
			}, flags.asJSON)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&tagsOnly, "tags-only", false, "Match tags only, skip the name phase")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(ctx, cmd, client.SearchQuery{
				Page:  flags.page,
				Count: flags.count,
			}, flags.asJSON)
		},
	}

	flags.register(cmd)
	return cmd
}

func newDupesCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "dupes",
		Short: "List entries whose content hash appears more than once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(ctx, cmd, client.SearchQuery{
				Page:          flags.page,
				Count:         flags.count,
				DuplicateOnly: true,
			}, flags.asJSON)
		},
	}

	flags.register(cmd)
	return cmd
}

func runSearch(ctx *commandContext, cmd *cobra.Command, query client.SearchQuery, asJSON bool) error {
	apiClient, err := ctx.apiClient()
	if err != nil {
		return err
	}
	res, err := apiClient.Search(cmd.Context(), query)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	if len(res.Items) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}

	rows := make([][]string, 0, len(res.Items))
	for _, item := range res.Items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			item.Name,
			fileSize(item.Path),
			item.Path,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"ID", "NAME", "SIZE", "PATH"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))

	page := query.Page
	if page < 1 {
		page = 1
	}
	fmt.Fprintf(out, "page %d of %d\n", page, res.TotalPage)
	if len(res.Tags) > 0 {
		names := make([]string, 0, len(res.Tags))
		for _, tag := range res.Tags {
			names = append(names, fmt.Sprintf("%s(%d)", tag.Name, tag.Count))
		}
		fmt.Fprintf(out, "tags: %s\n", strings.Join(names, " "))
	}
	return nil
}

// fileSize stats the entry's path, which is only meaningful when the CLI runs
// on the daemon's host. Missing files render as a dash.
func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "-"
	}
	return humanize.IBytes(uint64(info.Size()))
}

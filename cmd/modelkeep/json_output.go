package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON renders v for the --json flag that status, search, jobs, and tags
// share: indented JSON on the command's stdout, one value per invocation.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

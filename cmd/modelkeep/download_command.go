package main

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"modelkeep/internal/client"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var req client.DownloadRequest

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Ask the daemon to download a model file in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			if req.Name == "" {
				req.Name = guessFilename(req.URL)
			}
			if req.Name == "" {
				return fmt.Errorf("cannot derive a filename from %q, pass --name", req.URL)
			}

			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if req.Dest == "" {
				loc, err := api.SavedLocation(cmd.Context(), req.ModelType, req.Hash)
				if err != nil {
					return err
				}
				if loc.IsDownloaded {
					fmt.Fprintf(cmd.OutOrStdout(), "already downloaded under %s\n", loc.SavedLocation)
					return nil
				}
				req.Dest = loc.SavedLocation
			}

			msg, err := api.Download(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", msg, req.Dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Filename to write (derived from the URL when omitted)")
	cmd.Flags().StringVar(&req.Hash, "hash", "", "Expected BLAKE3 hash for transfer verification")
	cmd.Flags().StringVar(&req.Dest, "dest", "", "Destination directory inside a library root")
	cmd.Flags().StringVar(&req.ModelType, "type", "", "Model category, e.g. LORA or Checkpoint")
	return cmd
}

func guessFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || !strings.Contains(name, ".") {
		return ""
	}
	return name
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"modelkeep/internal/api"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow the daemon's event stream until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = apiClient.FollowEvents(cmd.Context(), func(msg api.EventMessage) {
				fmt.Fprintf(out, "%s [%s] %s\n", time.Now().Format("15:04:05"), msg.Level, msg.Text)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

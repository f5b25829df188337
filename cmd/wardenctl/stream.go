package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/client"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Follow the daemon's live event feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		err := newClient().Stream(ctx, func(ev client.StreamEvent) {
			fmt.Fprintf(w, "%s: %s -> %s\n", ev.Topic, ev.OldState, ev.NewState)
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <process...>",
	Short: "Start processes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runControlOp("started", func(ctx context.Context, name string) error { return newClient().StartProcess(ctx, name) }),
}

var stopCmd = &cobra.Command{
	Use:   "stop <process...>",
	Short: "Gracefully stop processes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runControlOp("stopped", func(ctx context.Context, name string) error { return newClient().StopProcess(ctx, name) }),
}

var killCmd = &cobra.Command{
	Use:   "kill <process...>",
	Short: "Forcefully stop processes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runControlOp("killed", func(ctx context.Context, name string) error { return newClient().KillProcess(ctx, name) }),
}

func runControlOp(verb string, op func(ctx context.Context, name string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		failed := false
		for _, name := range args {
			if err := op(ctx, name); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
				failed = true
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, verb)
		}
		if failed {
			return fmt.Errorf("one or more operations failed")
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, killCmd)
}

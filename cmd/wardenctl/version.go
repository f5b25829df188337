package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print wardenctl version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "wardenctl %s\n", version.Version)
		fmt.Fprintf(w, "  commit:  %s\n", version.Commit)
		fmt.Fprintf(w, "  go:      %s\n", runtime.Version())
		fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

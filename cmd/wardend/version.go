package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "wardend %s\n", version.Version)
		fmt.Fprintf(w, "  commit:  %s\n", version.Commit)
		fmt.Fprintf(w, "  built:   %s\n", version.Date)
		fmt.Fprintf(w, "  go:      %s\n", goVersionString())
		fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionString() string { return version.Version }

func goVersionString() string {
	if version.GoVersion != "" {
		return version.GoVersion
	}
	return runtime.Version()
}

// Command wardend is the supervisor daemon: it loads a config, builds the
// Supervisor aggregate, and serves the control surface until a terminating
// signal arrives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "wardend",
	Short:         "warden -- a process supervisor",
	Long:          "wardend supervises a set of child programs: spawning, restarting, and exposing their state over a control surface.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

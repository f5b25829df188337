// Command wardenctl is a remote control client for a running wardend
// daemon: it speaks the REST + SSE control surface over TCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	addrFlag string
	userFlag string
	passFlag string
)

var rootCmd = &cobra.Command{
	Use:           "wardenctl",
	Short:         "control a running wardend daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&addrFlag, "addr", "a", "127.0.0.1:9876", "wardend control surface address")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "basic auth username")
	rootCmd.PersistentFlags().StringVarP(&passFlag, "pass", "P", "", "basic auth password")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

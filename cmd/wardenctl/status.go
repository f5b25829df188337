package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/client"
)

func newClient() *client.Client {
	return client.New(addrFlag, userFlag, passFlag)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the supervisor's own coarse state",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := newClient().State(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [process...]",
	Short: "List supervised processes and their state",
	RunE: func(cmd *cobra.Command, args []string) error {
		procs, err := newClient().Processes(context.Background())
		if err != nil {
			return err
		}

		filter := make(map[string]bool, len(args))
		for _, n := range args {
			filter[n] = true
		}

		names := make([]string, 0, len(procs))
		for name := range procs {
			if len(filter) == 0 || filter[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		return formatStatusTable(procs, names, cmd.OutOrStdout(), isTerminal(cmd.OutOrStdout()))
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <process>",
	Short: "Show detailed info for a single process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient().ProcessInfo(context.Background(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "name:       %s\n", info.Name)
		fmt.Fprintf(w, "state:      %s\n", info.State)
		if info.Pid > 0 {
			fmt.Fprintf(w, "pid:        %d\n", info.Pid)
		}
		if info.StartTime != nil {
			fmt.Fprintf(w, "started:    %s\n", info.StartTime.Format(time.RFC3339))
		}
		if info.LastReturnCode != nil {
			fmt.Fprintf(w, "exit code:  %d\n", *info.LastReturnCode)
		}
		if info.LastError != "" {
			fmt.Fprintf(w, "last error: %s\n", info.LastError)
		}
		if info.Metrics != nil {
			fmt.Fprintf(w, "cpu:        %.1f%%\n", info.Metrics.CPUPercent)
			fmt.Fprintf(w, "rss:        %d bytes\n", info.Metrics.MemoryRSS)
			fmt.Fprintf(w, "threads:    %d\n", info.Metrics.NumThreads)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd, statusCmd, infoCmd)
}

func formatStatusTable(procs map[string]client.ProcessInfo, names []string, w io.Writer, color bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tSTATE\tPID\tUPTIME\n")
	for _, name := range names {
		p := procs[name]
		state := p.State
		if color {
			state = colorState(p.State)
		}
		pid := "-"
		if p.Pid > 0 {
			pid = fmt.Sprintf("%d", p.Pid)
		}
		uptime := "-"
		if p.StartTime != nil && p.StopTime == nil {
			uptime = formatDuration(time.Since(*p.StartTime))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, state, pid, uptime)
	}
	return tw.Flush()
}

func colorState(state string) string {
	switch state {
	case "RUNNING":
		return "\033[32m" + state + "\033[0m"
	case "FATAL":
		return "\033[31m" + state + "\033[0m"
	case "STARTING", "BACKOFF", "STOPPING":
		return "\033[33m" + state + "\033[0m"
	default:
		return state
	}
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, _ := f.Stat()
		return stat != nil && (stat.Mode()&os.ModeCharDevice) != 0
	}
	return false
}

package main

import (
	"context"
	"fmt"
	"os"

	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/api"
	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/eventbus"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/supervisor"
)

var (
	configFlag    string
	pidfileFlag   string
	daemonizeFlag bool
	userFlag      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the warden supervisor daemon",
	RunE:  runDaemon,
}

func init() {
	runCmd.Flags().StringVarP(&configFlag, "config", "c", "", "config file path (default: search paths)")
	runCmd.Flags().StringVarP(&pidfileFlag, "pidfile", "p", "", "PID file path")
	runCmd.Flags().BoolVarP(&daemonizeFlag, "daemonize", "d", false, "run in background (double-fork)")
	runCmd.Flags().StringVarP(&userFlag, "user", "u", "", "drop privileges to uid[:gid] after binding")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfgPath, err := config.Resolve(configFlag)
	if err != nil {
		return err
	}

	cfg, warnings, err := config.LoadWithIncludes(cfgPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	logger, cleanup, err := logging.DaemonLogger(cfg.Main.LogLevel, cfg.Main.LogFormat, cfg.Main.LogFile)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	supervisor.RootWarning(logger, userFlag != "")

	if daemonizeFlag || cfg.Main.Daemon {
		shouldExit, err := supervisor.Daemonize(logger)
		if err != nil {
			return fmt.Errorf("daemonize failed: %w", err)
		}
		if shouldExit {
			os.Exit(0)
		}
	}

	bus := eventbus.New(logger)

	webhookCfgs := make([]notify.WebhookConfig, 0, len(cfg.Webhooks))
	for name, w := range cfg.Webhooks {
		topics := make([]eventbus.Topic, 0, len(w.Topics))
		for _, t := range w.Topics {
			topics = append(topics, eventbus.Topic(t))
		}
		url, err := notify.ExpandEnv(w.URL)
		if err != nil {
			return fmt.Errorf("webhooks.%s: %w", name, err)
		}
		webhookCfgs = append(webhookCfgs, notify.WebhookConfig{
			Name:          name,
			URL:           url,
			Topics:        topics,
			Headers:       w.Headers,
			Timeout:       time.Duration(secondsOr(w.TimeoutSecs, 5)) * time.Second,
			MaxRetries:    w.MaxRetries,
			AllowInsecure: w.AllowInsecure,
		})
	}
	notify.NewWebhookManager(bus, webhookCfgs, logger)

	collector := metrics.New()
	collector.SetBuildInfo(versionString(), goVersionString())
	unsubscribeMetrics := metrics.Subscribe(bus, collector)
	defer unsubscribeMetrics()

	pidFile := pidfileFlag
	if pidFile == "" {
		pidFile = cfg.Main.PidFile
	}

	sup := supervisor.New(cfg, bus, &child.ExecSpawner{}, nil, logger)
	daemon := supervisor.NewDaemon(supervisor.DaemonConfig{
		Supervisor: sup,
		ConfigPath: cfgPath,
		PIDFile:    pidFile,
		Logger:     logger,
		Metrics:    collector,
	})

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	tickerDone := make(chan struct{})
	go runMetricsTicker(ticker, tickerDone, sup, collector)
	defer close(tickerDone)

	var apiServer *api.Server
	if cfg.Web.Enabled {
		apiServer = api.NewServer(api.Config{
			Listen:   cfg.Web.Listen,
			Username: cfg.Web.Username,
			Password: cfg.Web.Password,
		}, sup, bus, collector, logger)
		if err := apiServer.Listen(cfg.Web.Listen); err != nil {
			return err
		}
		go apiServer.Serve()
		defer apiServer.Stop(context.Background())
	}

	if userFlag != "" {
		if err := supervisor.DropPrivileges(userFlag, logger); err != nil {
			return err
		}
	}

	return daemon.Run()
}

func secondsOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// runMetricsTicker periodically refreshes the gauges that aren't driven
// directly by event-bus transitions: supervisor uptime, per-process uptime,
// and the count of children in each state.
func runMetricsTicker(ticker *time.Ticker, done <-chan struct{}, sup *supervisor.Supervisor, collector *metrics.Collector) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			info := sup.Info()
			collector.SetSupervisorUptime(time.Since(info.StartTime).Seconds())

			counts := make(map[string]int)
			for name, c := range sup.Children() {
				childInfo := c.Info()
				counts[childInfo.State]++
				if childInfo.StartTime != nil && childInfo.StopTime == nil {
					collector.SetProcessUptime(name, time.Since(*childInfo.StartTime).Seconds())
				}
			}
			for _, state := range []string{"STOPPED", "STARTING", "RUNNING", "BACKOFF", "STOPPING", "EXITED", "FATAL", "UNKNOWN"} {
				collector.SetProcessCount(state, counts[state])
			}
		}
	}
}

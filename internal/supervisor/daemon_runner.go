package supervisor

import (
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/metrics"
)

// Daemon composes the Supervisor aggregate with the ambient process
// concerns that are out of the core's scope per §1: signal handling,
// the pidfile, and config reload.
type Daemon struct {
	mu         sync.Mutex
	Supervisor *Supervisor
	configPath string
	pidFile    string
	signals    *SignalQueue
	logger     *slog.Logger
	metrics    *metrics.Collector
	shutting   bool
	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// DaemonConfig configures a Daemon.
type DaemonConfig struct {
	Supervisor *Supervisor
	ConfigPath string
	PIDFile    string
	Logger     *slog.Logger
	// Metrics is optional; when set, config reload outcomes are counted.
	Metrics *metrics.Collector
}

// NewDaemon wires a Daemon around an already-constructed Supervisor.
func NewDaemon(cfg DaemonConfig) *Daemon {
	return &Daemon{
		Supervisor: cfg.Supervisor,
		configPath: cfg.ConfigPath,
		pidFile:    cfg.PIDFile,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Run writes the pidfile, starts the supervisor, and blocks until a
// terminating signal or an explicit Shutdown call, then stops the
// supervisor and removes the pidfile.
func (d *Daemon) Run() error {
	if err := WritePIDFile(d.pidFile); err != nil {
		return err
	}
	defer RemovePIDFile(d.pidFile)

	d.signals = NewSignalQueue(d.logger)
	defer d.signals.Stop()

	d.Supervisor.Start()
	d.logger.Info("supervisor running", "pid", os.Getpid())

	for {
		select {
		case sig := <-d.signals.C:
			if d.handleSignal(sig) {
				goto shutdown
			}
		case <-d.shutdownCh:
			goto shutdown
		}
	}

shutdown:
	d.logger.Info("shutting down")
	d.Supervisor.Stop()
	close(d.doneCh)
	d.logger.Info("shutdown complete")
	return nil
}

func (d *Daemon) handleSignal(sig os.Signal) bool {
	d.logger.Info("received signal", "signal", sig.String())

	switch sig {
	case syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT:
		return true
	case syscall.SIGHUP:
		d.handleReload()
		return false
	default:
		d.logger.Warn("unhandled signal", "signal", sig.String())
		return false
	}
}

// handleReload re-reads and validates the config file and logs the program
// names it now lists. Programs and webhooks are not hot-swapped into the
// running Supervisor: per the core's data model the child map is fixed at
// construction (§3), so program changes take effect only after a daemon
// restart. No diff against the running configuration is computed.
func (d *Daemon) handleReload() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shutting {
		d.logger.Warn("ignoring reload during shutdown")
		return
	}

	d.logger.Info("reloading config", "path", d.configPath)

	newCfg, warnings, err := config.LoadWithIncludes(d.configPath)
	if err != nil {
		d.logger.Error("reload failed", "error", err)
		if d.metrics != nil {
			d.metrics.IncConfigReloadError()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.IncConfigReload()
	}
	for _, w := range warnings {
		d.logger.Warn("config warning", "warning", w)
	}

	names := make([]string, 0, len(newCfg.Programs))
	for name := range newCfg.Programs {
		names = append(names, name)
	}
	d.logger.Info("config reloaded; restart the daemon to apply program changes", "programs", names)
}

// Shutdown triggers a graceful shutdown from outside the signal path.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.shutting {
		d.shutting = true
		close(d.shutdownCh)
	}
}

// Done returns a channel that closes once Run has finished shutting down.
func (d *Daemon) Done() <-chan struct{} { return d.doneCh }

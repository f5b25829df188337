package supervisor

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalQueue captures OS signals for deferred processing in the main loop.
// Each child reaps its own process via its own waiter goroutine (§9
// "bounded wait for process exit"), so unlike a classic supervisor there is
// no SIGCHLD handler here: Wait is called directly, not discovered via the
// signal.
type SignalQueue struct {
	C      <-chan os.Signal
	ch     chan os.Signal
	logger *slog.Logger
}

// NewSignalQueue creates a signal queue with a buffer of 16 signals.
// It registers for SIGTERM, SIGINT, SIGQUIT, and SIGHUP.
func NewSignalQueue(logger *slog.Logger) *SignalQueue {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGHUP,
	)
	return &SignalQueue{
		C:      ch,
		ch:     ch,
		logger: logger,
	}
}

// Stop deregisters signal notifications and closes the channel.
func (sq *SignalQueue) Stop() {
	signal.Stop(sq.ch)
}

// RootWarning logs a warning if the process is running as root (uid 0)
// without a configured user for privilege dropping.
func RootWarning(logger *slog.Logger, userConfigured bool) {
	if os.Getuid() != 0 {
		return
	}
	if userConfigured {
		return
	}
	logger.Warn("running as root without --user; consider passing --user for privilege dropping")
}

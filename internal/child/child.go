// Package child implements the per-child lifecycle state machine: the
// cooperative task that owns one supervised program's transitions between
// Stopped, Starting, Running, Backoff, Stopping, Exited, and Fatal.
package child

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wardenhq/warden/internal/eventbus"
)

// Config is the immutable, already-validated description of one supervised
// program (§3 ChildConfig). The parsing collaborator is responsible for
// applying defaults before constructing one of these.
type Config struct {
	Name         string
	Command      []string // argument vector, argv[0] is the binary
	CommandLine  string   // single shell string, used when Shell is true
	Shell        bool
	Environment  map[string]string // nil/empty means inherit os.Environ()
	Directory    string            // "" means inherit cwd
	User         string            // "uid:gid"; "" means inherit
	Umask        int               // -1 means inherit
	Resources    map[string]uint64 // rlimit name -> soft limit
	StopSignal   string            // POSIX signal name, default TERM
	StartSecs    time.Duration
	StartRetries int
	StopWaitSecs time.Duration
	ExitCodes    []int // accepted clean-exit codes, default {0}
	AutoStart    bool
}

// Info is a point-in-time snapshot of a Child, returned by Info() and
// carried on process_state events.
type Info struct {
	Name           string
	State          string
	StartTime      *time.Time
	StopTime       *time.Time
	Pid            int
	LastReturnCode *int
	LastError      string
	Metrics        *Metrics
}

// Metrics is the optional OS-level enrichment block. A missing metrics
// source (or an unreadable /proc entry) degrades to a nil block rather
// than an error, per the "weak info dependency" design note.
type Metrics struct {
	Cmdline    string
	CPUPercent float64
	MemoryRSS  uint64
	NumFDs     int32
	NumThreads int32
}

// Child is the mutable, single-owner runtime record for one supervised
// program. All state transitions go through changeState, which is the
// only path that publishes to the event bus.
type Child struct {
	publishMu sync.Mutex // serializes "mutate state, then publish" as one unit
	mu        sync.Mutex // guards the fields below

	name   string
	config Config
	state  State

	startTime *time.Time
	stopTime  *time.Time
	proc      SpawnedProcess
	lastCode  *int
	lastError string

	stopRequested chan struct{} // closed once per driver generation by stop()/kill()
	restartReq    chan struct{} // closed to wake a sleeping Backoff driver early, attempt counter reset
	driverDone    chan struct{} // closed when the current driver goroutine exits
	forceKill     bool

	spawner Spawner
	bus     *eventbus.Bus
	logger  logger
	clock   Clock
}

// logger is the narrow slog surface child needs, so tests don't have to
// construct a real *slog.Logger.
type logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New constructs a Child in the Stopped state. No OS process and no
// driver exist until Start is called.
func New(cfg Config, spawner Spawner, bus *eventbus.Bus, log logger, clock Clock) *Child {
	if clock == nil {
		clock = RealClock()
	}
	return &Child{
		name:    cfg.Name,
		config:  cfg,
		state:   Stopped,
		spawner: spawner,
		bus:     bus,
		logger:  log,
		clock:   clock,
	}
}

func (c *Child) Name() string { return c.name }

// Config returns the immutable configuration this child was constructed
// with.
func (c *Child) Config() Config { return c.config }

func (c *Child) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Child) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == nil {
		return 0
	}
	return c.proc.Pid()
}

// Info returns a snapshot combining config-derived identity with live
// runtime status, enriched with an optional metrics block.
func (c *Child) Info() Info {
	c.mu.Lock()
	info := c.infoLocked()
	c.mu.Unlock()
	info.Metrics = readMetrics(info.Pid)
	return info
}

func (c *Child) infoLocked() Info {
	pid := 0
	if c.proc != nil {
		pid = c.proc.Pid()
	}
	var lastCode *int
	if c.lastCode != nil {
		v := *c.lastCode
		lastCode = &v
	}
	return Info{
		Name:           c.name,
		State:          c.state.String(),
		StartTime:      c.startTime,
		StopTime:       c.stopTime,
		Pid:            pid,
		LastReturnCode: lastCode,
		LastError:      c.lastError,
	}
}

// changeState is the sole primitive through which state changes: it
// mutates under the data lock, takes a snapshot while the new state is
// current, then publishes outside the data lock (so a handler calling
// back into Info()/State() cannot deadlock). publishMu is held across the
// whole mutate-then-publish sequence so that concurrent callers (the
// driver goroutine and a Stop()/Kill() caller) publish in the same order
// they acquired the right to mutate, preserving the "observed order
// matches true transition order" guarantee.
func (c *Child) changeState(new State) (old State) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	old = c.state
	if !canTransition(old, new) && c.logger != nil {
		c.logger.Warn("child state transition outside the documented table", "child", c.name, "from", old.String(), "to", new.String())
	}
	c.state = new
	info := c.infoLocked()
	c.mu.Unlock()

	c.bus.Publish(eventbus.Event{
		Topic:    eventbus.TopicProcessState,
		Sender:   c.name,
		OldState: old.String(),
		NewState: new.String(),
		Info:     info,
	})
	return old
}

// Start spawns the lifecycle driver and returns immediately; the driver
// advances state asynchronously. Start is fire-and-forget: observers
// watch the event bus, not a returned future.
//
// Backoff is both *running* and *startable*: a driver is already sleeping
// between attempts, so Start wakes it in place instead of spawning a second
// driver, which would race the same Child concurrently. The woken driver
// resets its own attempt counter, matching "Backoff | start() | Starting
// (new driver)" without orphaning the sleeping goroutine.
//
// Starting is excluded from *startable* but is not reported as
// AlreadyRunning: per the resolved "start on Starting" open question,
// AlreadyRunning is reserved for Running specifically, and Starting falls
// through to IllegalState.
func (c *Child) Start() error {
	c.mu.Lock()
	state := c.state

	if state == Backoff {
		restartReq := c.restartReq
		c.mu.Unlock()
		closeOnce(restartReq)
		return nil
	}

	if !state.IsStartable() {
		c.mu.Unlock()
		if state == Running {
			return &ErrAlreadyRunning{Name: c.name}
		}
		return &ErrIllegalState{Name: c.name, State: state, Op: "start"}
	}

	stopReq := make(chan struct{})
	done := make(chan struct{})
	c.stopRequested = stopReq
	c.driverDone = done
	c.forceKill = false
	c.lastError = ""
	c.mu.Unlock()

	go c.runDriver(stopReq, done)
	return nil
}

// Stop requests a graceful shutdown: stopSignal, then force-kill after
// stopWaitSecs if the process has not exited. It blocks until the
// process has exited (or, from Backoff, resolves immediately since no
// process exists). Only the first of several concurrent Stop/Kill calls
// sends a signal; the rest await the same completion.
func (c *Child) Stop() error { return c.stopOrKill(false) }

// Kill is Stop with no grace period: it always uses forceful termination.
func (c *Child) Kill() error { return c.stopOrKill(true) }

func (c *Child) stopOrKill(force bool) error {
	op := "stop"
	if force {
		op = "kill"
	}

	c.mu.Lock()
	state := c.state
	if state == Stopped {
		c.mu.Unlock()
		return &ErrAlreadyStopped{Name: c.name}
	}
	if !state.IsStoppable() {
		c.mu.Unlock()
		return &ErrIllegalState{Name: c.name, State: state, Op: op}
	}

	if state == Backoff {
		// No OS process exists while backing off: wake the sleeping driver,
		// which observes stopReq and makes the Backoff->Stopped transition
		// itself (see sleepBackoff/backoffAborted).
		stopReq := c.stopRequested
		done := c.driverDone
		c.mu.Unlock()

		closeOnce(stopReq)
		if done != nil {
			<-done
		}
		return nil
	}

	first := state != Stopping
	if force {
		c.forceKill = true
	}
	c.mu.Unlock()

	// Publish Stopping before the signal is sent: any observer that sees
	// Stopping is guaranteed the signal has been, or is being, sent.
	if first {
		c.changeState(Stopping)
	}

	c.mu.Lock()
	proc := c.proc
	stopWait := c.config.StopWaitSecs
	done := c.driverDone
	c.mu.Unlock()

	if proc != nil {
		if force {
			_ = proc.Signal(syscall.SIGKILL)
		} else if first {
			_ = proc.Signal(c.resolveStopSignal())
			go c.escalate(proc, stopWait, done)
		}
	}

	if done != nil {
		<-done
	}
	return nil
}

func (c *Child) escalate(proc SpawnedProcess, stopWait time.Duration, done <-chan struct{}) {
	if stopWait <= 0 {
		stopWait = 10 * time.Second
	}
	timer := time.NewTimer(stopWait)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
		if c.logger != nil {
			c.logger.Warn("grace period expired, force-killing", "child", c.name)
		}
		_ = proc.Signal(syscall.SIGKILL)
	}
}

func closeOnce(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func timePtr(t time.Time) *time.Time { return &t }

// runDriver is the lifecycle driver: a long-lived cooperative task created
// by Start, running the attempt loop from the design exactly, ending in
// Running->Exited, Fatal, or Stopped.
func (c *Child) runDriver(stopReq chan struct{}, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.driverDone == done {
			c.driverDone = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	attemptsTotal := c.config.StartRetries + 1

	for attempt := 1; attempt <= attemptsTotal; attempt++ {
		c.changeState(Starting)
		c.mu.Lock()
		c.restartReq = nil
		c.mu.Unlock()

		proc, spawnErr := c.spawn()
		if spawnErr != nil {
			c.mu.Lock()
			c.lastError = spawnErr.Error()
			c.mu.Unlock()
			c.changeState(Fatal)
			return
		}

		c.mu.Lock()
		c.proc = proc
		c.startTime = timePtr(c.clock.Now())
		c.mu.Unlock()

		w := newWaiter(proc)
		exited, code := c.waitStartup(w, c.config.StartSecs)

		if exited {
			c.mu.Lock()
			c.proc = nil
			v := code
			c.lastCode = &v
			cur := c.state
			c.mu.Unlock()

			if cur == Stopping {
				c.changeState(Stopped)
				c.mu.Lock()
				c.stopTime = timePtr(c.clock.Now())
				c.mu.Unlock()
				return
			}
			if attempt < attemptsTotal {
				restartReq := make(chan struct{})
				c.mu.Lock()
				c.restartReq = restartReq
				c.mu.Unlock()

				c.changeState(Backoff)
				switch c.sleepBackoff(attempt, stopReq, restartReq) {
				case backoffElapsed:
					continue
				case backoffRestarted:
					attempt = 0 // the post-statement increments to 1: a fresh driver
					continue
				case backoffAborted:
					c.changeState(Stopped)
					c.mu.Lock()
					c.stopTime = timePtr(c.clock.Now())
					c.mu.Unlock()
					return
				}
			}
			c.changeState(Fatal)
			return
		}

		c.changeState(Running)

		code = c.waitRunning(w)
		c.mu.Lock()
		c.proc = nil
		v := code
		c.lastCode = &v
		cur := c.state
		c.mu.Unlock()

		if cur == Stopping {
			c.changeState(Stopped)
			c.mu.Lock()
			c.stopTime = timePtr(c.clock.Now())
			c.mu.Unlock()
			return
		}
		c.changeState(Exited)
		c.mu.Lock()
		c.stopTime = timePtr(c.clock.Now())
		c.mu.Unlock()
		return
	}
}

type backoffOutcome int

const (
	backoffElapsed backoffOutcome = iota
	backoffAborted
	backoffRestarted
)

// sleepBackoff waits linearly-scaled seconds (the n-th backoff is n
// seconds, per the design's explicit rejection of exponential backoff),
// interruptible either by a stop/kill request or by an explicit Start()
// call waking this Backoff early (restartReq).
func (c *Child) sleepBackoff(attempt int, stopReq, restartReq <-chan struct{}) backoffOutcome {
	delay := time.Duration(attempt) * time.Second
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return backoffElapsed
	case <-stopReq:
		return backoffAborted
	case <-restartReq:
		return backoffRestarted
	}
}

type waiter struct {
	done chan struct{}
	ps   *os.ProcessState
	err  error
}

func newWaiter(proc SpawnedProcess) *waiter {
	w := &waiter{done: make(chan struct{})}
	go func() {
		w.ps, w.err = proc.Wait()
		close(w.done)
	}()
	return w
}

// waitStartup races the process's exit against the startSecs timer
// without cancelling the underlying wait: if the timer wins, the wait
// goroutine is left running and its result is reused by waitRunning.
func (c *Child) waitStartup(w *waiter, startSecs time.Duration) (exited bool, code int) {
	if startSecs <= 0 {
		select {
		case <-w.done:
			return true, exitCodeOf(w.ps, w.err)
		default:
			return false, 0
		}
	}
	timer := time.NewTimer(startSecs)
	defer timer.Stop()
	select {
	case <-w.done:
		return true, exitCodeOf(w.ps, w.err)
	case <-timer.C:
		return false, 0
	}
}

func (c *Child) waitRunning(w *waiter) int {
	<-w.done
	return exitCodeOf(w.ps, w.err)
}

// exitCodeOf normalizes a process exit into a single integer: the plain
// exit code, or 128+signal when the process was terminated by a signal
// (the conventional POSIX shell encoding), matching lastReturnCode
// expectations in stop-during-startup and grace-expiry scenarios.
func exitCodeOf(ps *os.ProcessState, err error) int {
	if ps == nil {
		return -1
	}
	if status, ok := ps.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return ps.ExitCode()
}

func (c *Child) spawn() (SpawnedProcess, error) {
	path, args, err := buildArgv(c.config)
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	rlimits, err := ParseRLimits(c.config.Resources)
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	attr, err := BuildSysProcAttr(c.config.User)
	if err != nil {
		return nil, &SpawnError{Err: err}
	}

	cfg := SpawnConfig{
		Command:     path,
		Args:        args,
		Dir:         c.config.Directory,
		Env:         buildEnv(c.config),
		Umask:       c.config.Umask,
		RLimits:     rlimits,
		SysProcAttr: attr,
	}
	proc, err := c.spawner.Spawn(cfg)
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	return proc, nil
}

// buildArgv resolves the config's command/commandLine+shell pair into an
// executable path and argument vector.
func buildArgv(cfg Config) (string, []string, error) {
	if cfg.Shell {
		if strings.TrimSpace(cfg.CommandLine) == "" {
			return "", nil, fmt.Errorf("child %q: shell is true but commandLine is empty", cfg.Name)
		}
		return "/bin/sh", []string{"-c", cfg.CommandLine}, nil
	}
	if len(cfg.Command) == 0 {
		return "", nil, fmt.Errorf("child %q: command is empty", cfg.Name)
	}
	return cfg.Command[0], cfg.Command[1:], nil
}

func buildEnv(cfg Config) []string {
	env := os.Environ()
	env = append(env, "WARDEN_PROCESS_NAME="+cfg.Name)
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}
	return env
}

func (c *Child) resolveStopSignal() os.Signal {
	sig, err := ParseSignal(c.config.StopSignal)
	if err != nil {
		return syscall.SIGTERM
	}
	return sig
}

// ParseSignal maps a POSIX signal name (with or without the "SIG"
// prefix) to the corresponding os.Signal.
func ParseSignal(name string) (os.Signal, error) {
	name = strings.ToUpper(strings.TrimPrefix(strings.ToUpper(name), "SIG"))
	switch name {
	case "", "TERM":
		return syscall.SIGTERM, nil
	case "HUP":
		return syscall.SIGHUP, nil
	case "INT":
		return syscall.SIGINT, nil
	case "QUIT":
		return syscall.SIGQUIT, nil
	case "KILL":
		return syscall.SIGKILL, nil
	case "USR1":
		return syscall.SIGUSR1, nil
	case "USR2":
		return syscall.SIGUSR2, nil
	case "STOP":
		return syscall.SIGSTOP, nil
	case "CONT":
		return syscall.SIGCONT, nil
	default:
		return nil, fmt.Errorf("unknown signal %q", name)
	}
}

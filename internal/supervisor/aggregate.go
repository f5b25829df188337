// Package supervisor implements the supervisor aggregate (§4.3): the
// keyed collection of children, its own coarse state, and the daemon-level
// glue (signals, pidfile, config reload) that is ambient to the core.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/eventbus"
)

// State is the supervisor's own coarse state, independent of any child's.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// NotFoundError is returned by Process when no child is registered under
// the given name.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("process not found: %s", e.Name)
}

// Info is a point-in-time snapshot of the supervisor, returned by Info()
// and carried on server_state events.
type Info struct {
	Name      string
	Hostname  string
	Pid       int
	StartTime time.Time
	State     State
}

// Supervisor owns a named collection of Children, built once from a parsed
// Config, and exposes lookup and batch lifecycle operations. It is a
// composer, not an authority: it never synthesises child state changes.
type Supervisor struct {
	mu        sync.RWMutex
	name      string
	hostname  string
	children  map[string]*child.Child
	bus       *eventbus.Bus
	state     State
	startTime time.Time
	logger    *slog.Logger
}

// New builds the child map from cfg and wires every child to bus and
// spawner, but does not start anything; call Start to do that.
func New(cfg *config.Config, bus *eventbus.Bus, spawner child.Spawner, clk child.Clock, logger *slog.Logger) *Supervisor {
	hostname, _ := os.Hostname()

	name := cfg.Main.Name
	if name == "" {
		name = "warden"
	}

	s := &Supervisor{
		name:     name,
		hostname: hostname,
		children: make(map[string]*child.Child, len(cfg.Programs)),
		bus:      bus,
		logger:   logger,
	}

	for progName, p := range cfg.Programs {
		cc := programToChildConfig(progName, p)
		s.children[progName] = child.New(cc, spawner, bus, logger, clk)
	}

	return s
}

func programToChildConfig(name string, p config.ProgramConfig) child.Config {
	umask := -1
	if p.Umask != "" {
		if parsed, err := child.ParseUmask(p.Umask); err == nil {
			umask = parsed
		}
	}

	autoStart := true
	if p.Autostart != nil {
		autoStart = *p.Autostart
	}

	return child.Config{
		Name:         name,
		Command:      p.Command,
		CommandLine:  p.CommandLine,
		Shell:        p.Shell,
		Environment:  p.Environment,
		Directory:    p.Directory,
		User:         p.User,
		Umask:        umask,
		Resources:    p.Resources,
		StopSignal:   p.Stopsignal,
		StartSecs:    time.Duration(p.Startsecs) * time.Second,
		StartRetries: p.Startretries,
		StopWaitSecs: time.Duration(p.Stopwaitsecs) * time.Second,
		ExitCodes:    p.Exitcodes,
		AutoStart:    autoStart,
	}
}

// Start transitions the supervisor to Starting, issues start() on every
// autoStart child concurrently, and transitions to Running once every
// child has had its first transition issued. It does not wait for any
// child to reach Running: start is fire-and-forget at the child level too.
func (s *Supervisor) Start() {
	s.mu.Lock()
	old := s.state
	s.state = Starting
	s.startTime = time.Now()
	s.mu.Unlock()
	s.publish(old, Starting)

	var wg sync.WaitGroup
	for name, c := range s.snapshotChildren() {
		if !c.Config().AutoStart {
			continue
		}
		wg.Add(1)
		go func(name string, c *child.Child) {
			defer wg.Done()
			if err := c.Start(); err != nil {
				s.logger.Warn("autostart failed", "process", name, "error", err)
			}
		}(name, c)
	}
	wg.Wait()

	s.mu.Lock()
	old = s.state
	s.state = Running
	s.mu.Unlock()
	s.publish(old, Running)
}

// Stop transitions the supervisor to Stopping, issues stop() on every
// child concurrently, waits for all of them, and transitions to Stopped.
// A stuck child cannot delay this beyond its own stopWaitSecs plus kill
// cost.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	old := s.state
	s.state = Stopping
	s.mu.Unlock()
	s.publish(old, Stopping)

	var wg sync.WaitGroup
	for name, c := range s.snapshotChildren() {
		wg.Add(1)
		go func(name string, c *child.Child) {
			defer wg.Done()
			if err := c.Stop(); err != nil {
				s.logger.Debug("stop skipped", "process", name, "error", err)
			}
		}(name, c)
	}
	wg.Wait()

	s.mu.Lock()
	old = s.state
	s.state = Stopped
	s.mu.Unlock()
	s.publish(old, Stopped)
}

// Process returns the named child, or a *NotFoundError if no child is
// registered under that name.
func (s *Supervisor) Process(name string) (*child.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return c, nil
}

// Children returns a read-only keyed snapshot of every child, for
// iteration by boundary adapters.
func (s *Supervisor) Children() map[string]*child.Child {
	return s.snapshotChildren()
}

func (s *Supervisor) snapshotChildren() map[string]*child.Child {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*child.Child, len(s.children))
	for k, v := range s.children {
		out[k] = v
	}
	return out
}

// State returns the supervisor's own coarse state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a point-in-time snapshot of the supervisor.
func (s *Supervisor) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		Name:      s.name,
		Hostname:  s.hostname,
		Pid:       os.Getpid(),
		StartTime: s.startTime,
		State:     s.state,
	}
}

func (s *Supervisor) publish(old, new State) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Topic:     eventbus.TopicServerState,
		Sender:    s.name,
		OldState:  old.String(),
		NewState:  new.String(),
		Info:      s.Info(),
		Timestamp: time.Now(),
	})
}

package child

// State is the child's lifecycle state, a closed variant per the state
// table in the design: Stopped, Starting, Running, Backoff, Stopping,
// Exited, Fatal, and the reserved Unknown used only for recovered or
// unrecognised states (the driver never enters it spontaneously).
type State int

const (
	Stopped State = iota
	Starting
	Running
	Backoff
	Stopping
	Exited
	Fatal
	Unknown
)

var stateNames = [...]string{
	"STOPPED", "STARTING", "RUNNING", "BACKOFF", "STOPPING", "EXITED", "FATAL", "UNKNOWN",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// IsStopped reports whether s belongs to the *stopped* predicate set:
// no lifecycle driver is live and no OS process is expected to exist.
func (s State) IsStopped() bool {
	switch s {
	case Stopped, Exited, Fatal, Unknown:
		return true
	default:
		return false
	}
}

// IsRunning reports whether s belongs to the *running* predicate set: a
// lifecycle driver is live, whether or not an OS process currently exists.
func (s State) IsRunning() bool {
	switch s {
	case Starting, Running, Backoff:
		return true
	default:
		return false
	}
}

// IsStartable reports whether start() may legally be called from s.
func (s State) IsStartable() bool {
	switch s {
	case Stopped, Exited, Fatal, Backoff:
		return true
	default:
		return false
	}
}

// IsStoppable reports whether stop()/kill() may legally be called from s.
func (s State) IsStoppable() bool {
	switch s {
	case Starting, Running, Backoff, Unknown:
		return true
	default:
		return false
	}
}

// validTransitions documents the legal edges of the child state machine.
// changeState asserts membership as a safety net against programmer error;
// start()/stop() do not consult this table directly, they gate on the
// predicate sets above, which is how the spec expresses the same rules.
var validTransitions = map[State][]State{
	Stopped:  {Starting},
	Starting: {Running, Backoff, Fatal, Stopping},
	Running:  {Exited, Stopping},
	Backoff:  {Starting, Stopped},
	Stopping: {Stopped, Exited},
	Exited:   {Starting},
	Fatal:    {Starting},
	Unknown:  {Starting, Stopped},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

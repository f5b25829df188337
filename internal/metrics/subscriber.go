package metrics

import (
	"strings"

	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/eventbus"
)

// stateCode maps a child.State name to the numeric code Prometheus
// consumers expect (matching child.State's own iota ordering).
func stateCode(name string) float64 {
	switch strings.ToUpper(name) {
	case "STOPPED":
		return float64(child.Stopped)
	case "STARTING":
		return float64(child.Starting)
	case "RUNNING":
		return float64(child.Running)
	case "BACKOFF":
		return float64(child.Backoff)
	case "STOPPING":
		return float64(child.Stopping)
	case "EXITED":
		return float64(child.Exited)
	case "FATAL":
		return float64(child.Fatal)
	default:
		return float64(child.Unknown)
	}
}

// Subscribe wires a Collector to a Bus: every process_state transition
// updates the state gauge; a transition into Starting increments the start
// counter and a transition into Exited or Fatal increments the exit counter
// (expected="true" for Exited). Returns an unsubscribe func.
func Subscribe(bus *eventbus.Bus, c *Collector) func() {
	id := bus.Subscribe(eventbus.TopicProcessState, func(e eventbus.Event) {
		c.ProcessState.WithLabelValues(e.Sender).Set(stateCode(e.NewState))

		switch strings.ToUpper(e.NewState) {
		case "STARTING":
			c.IncProcessStart(e.Sender)
		case "EXITED", "FATAL":
			expected := strings.ToUpper(e.NewState) == "EXITED"
			c.IncProcessExit(e.Sender, expected)
		}
	})
	return func() { bus.Unsubscribe(id) }
}

// Package metrics collects and exposes Prometheus metrics for warden.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all warden Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	// Per-child metrics.
	ProcessState      *prometheus.GaugeVec
	ProcessStartTotal *prometheus.CounterVec
	ProcessExitTotal  *prometheus.CounterVec
	ProcessUptime     *prometheus.GaugeVec

	// Supervisor-level metrics.
	SupervisorUptime       prometheus.Gauge
	SupervisorProcesses    *prometheus.GaugeVec
	ConfigReloadTotal      prometheus.Counter
	ConfigReloadErrorTotal prometheus.Counter
	BuildInfo              *prometheus.GaugeVec
}

// New creates and registers all warden metrics.
func New() *Collector {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Collector{
		registry: reg,

		ProcessState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_process_state",
				Help: "Current state of a supervised child (numeric state code).",
			},
			[]string{"name"},
		),

		ProcessStartTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_process_start_total",
				Help: "Total number of times a child has been started.",
			},
			[]string{"name"},
		),

		ProcessExitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_process_exit_total",
				Help: "Total number of child exits.",
			},
			[]string{"name", "expected"},
		),

		ProcessUptime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_process_uptime_seconds",
				Help: "Uptime of a supervised child in seconds.",
			},
			[]string{"name"},
		),

		SupervisorUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_supervisor_uptime_seconds",
				Help: "Uptime of the warden supervisor in seconds.",
			},
		),

		SupervisorProcesses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_supervisor_processes",
				Help: "Number of children per state.",
			},
			[]string{"state"},
		),

		ConfigReloadTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_supervisor_config_reload_total",
				Help: "Total number of config reloads observed.",
			},
		),

		ConfigReloadErrorTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_supervisor_config_reload_errors_total",
				Help: "Total number of failed config reloads.",
			},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_info",
				Help: "Build information about warden.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		c.ProcessState,
		c.ProcessStartTotal,
		c.ProcessExitTotal,
		c.ProcessUptime,
		c.SupervisorUptime,
		c.SupervisorProcesses,
		c.ConfigReloadTotal,
		c.ConfigReloadErrorTotal,
		c.BuildInfo,
	)

	return c
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetBuildInfo sets the constant build info gauge.
func (c *Collector) SetBuildInfo(version, goVersion string) {
	c.BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// SetProcessState updates the state gauge for a child.
func (c *Collector) SetProcessState(name string, stateCode int) {
	c.ProcessState.WithLabelValues(name).Set(float64(stateCode))
}

// IncProcessStart increments the start counter for a child.
func (c *Collector) IncProcessStart(name string) {
	c.ProcessStartTotal.WithLabelValues(name).Inc()
}

// IncProcessExit increments the exit counter for a child.
func (c *Collector) IncProcessExit(name string, expected bool) {
	label := "false"
	if expected {
		label = "true"
	}
	c.ProcessExitTotal.WithLabelValues(name, label).Inc()
}

// SetProcessUptime sets the uptime gauge for a child.
func (c *Collector) SetProcessUptime(name string, seconds float64) {
	c.ProcessUptime.WithLabelValues(name).Set(seconds)
}

// SetSupervisorUptime sets the supervisor uptime gauge.
func (c *Collector) SetSupervisorUptime(seconds float64) {
	c.SupervisorUptime.Set(seconds)
}

// SetProcessCount sets the count of children in a given state.
func (c *Collector) SetProcessCount(state string, count int) {
	c.SupervisorProcesses.WithLabelValues(state).Set(float64(count))
}

// IncConfigReload increments the config reload counter.
func (c *Collector) IncConfigReload() {
	c.ConfigReloadTotal.Inc()
}

// IncConfigReloadError increments the config reload error counter.
func (c *Collector) IncConfigReloadError() {
	c.ConfigReloadErrorTotal.Inc()
}

// RemoveProcess cleans up metrics for a removed child.
func (c *Collector) RemoveProcess(name string) {
	c.ProcessState.DeleteLabelValues(name)
	c.ProcessStartTotal.DeleteLabelValues(name)
	c.ProcessExitTotal.DeletePartialMatch(prometheus.Labels{"name": name})
	c.ProcessUptime.DeleteLabelValues(name)
}

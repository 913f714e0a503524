// Package metrics exposes docgate's Prometheus series on a private
// registry, the way the teacher never touches prometheus.DefaultRegisterer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every Prometheus metric docgate reports.
type Collector struct {
	Registry *prometheus.Registry

	connectionsActive  prometheus.Gauge
	connectionsIdle    prometheus.Gauge
	connectionsTotal   prometheus.Gauge
	connectionsWaiting prometheus.Gauge

	sessionDuration prometheus.Histogram
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	poolExhausted   prometheus.Counter
	backendHealth   prometheus.Gauge
	acquireDuration prometheus.Histogram
}

// New creates and registers docgate's metrics on a fresh, private registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docgate_connections_active",
			Help: "Number of backend connections currently checked out by a session.",
		}),
		connectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docgate_connections_idle",
			Help: "Number of backend connections sitting idle in the pool.",
		}),
		connectionsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docgate_connections_total",
			Help: "Total backend connections currently open (active + idle).",
		}),
		connectionsWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docgate_connections_waiting",
			Help: "Number of sessions blocked waiting for a pool slot.",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgate_session_duration_seconds",
			Help:    "Lifetime of a client session from accept to close.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docgate_command_duration_seconds",
			Help:    "Time spent dispatching and executing a single command.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"command"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docgate_commands_total",
			Help: "Total commands processed, by command name and outcome.",
		}, []string{"command", "status"}),
		poolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docgate_pool_exhausted_total",
			Help: "Total number of times a session had to wait because the pool was at max.",
		}),
		backendHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docgate_backend_health",
			Help: "Backend health as last observed by the health checker (1=healthy, 0=unhealthy).",
		}),
		acquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgate_acquire_duration_seconds",
			Help:    "Time spent waiting for Pool.Acquire to return.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.connectionsIdle,
		c.connectionsTotal,
		c.connectionsWaiting,
		c.sessionDuration,
		c.commandDuration,
		c.commandsTotal,
		c.poolExhausted,
		c.backendHealth,
		c.acquireDuration,
	)

	return c
}

// UpdatePoolStats sets the pool occupancy gauges from a point-in-time snapshot.
func (c *Collector) UpdatePoolStats(active, idle, total, waiting int) {
	c.connectionsActive.Set(float64(active))
	c.connectionsIdle.Set(float64(idle))
	c.connectionsTotal.Set(float64(total))
	c.connectionsWaiting.Set(float64(waiting))
}

// SessionDuration observes a completed session's total lifetime.
func (c *Collector) SessionDuration(d time.Duration) {
	c.sessionDuration.Observe(d.Seconds())
}

// CommandCompleted records a command's duration and outcome.
func (c *Collector) CommandCompleted(command string, d time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.commandDuration.WithLabelValues(command).Observe(d.Seconds())
	c.commandsTotal.WithLabelValues(command, status).Inc()
}

// PoolExhausted increments the pool-exhaustion counter.
func (c *Collector) PoolExhausted() {
	c.poolExhausted.Inc()
}

// SetBackendHealth sets the backend health gauge.
func (c *Collector) SetBackendHealth(healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	c.backendHealth.Set(val)
}

// AcquireDuration observes time spent waiting for a pool slot.
func (c *Collector) AcquireDuration(d time.Duration) {
	c.acquireDuration.Observe(d.Seconds())
}

// Package health periodically probes the backend over a real pool
// connection and tracks consecutive-failure state the way the teacher's
// checker does, collapsed from per-tenant to the single backend docgate
// proxies (spec §4.12).
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docgate/internal/backend"
	"docgate/internal/config"
	"docgate/internal/metrics"
)

// Status is the backend's current health as the checker sees it.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// BackendHealth is a snapshot of the checker's current view.
type BackendHealth struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Checker runs a ticker-driven liveness probe against the backend pool.
type Checker struct {
	mu sync.RWMutex
	bh BackendHealth

	pool    *backend.Pool
	metrics *metrics.Collector

	interval          time.Duration
	failureThreshold  int
	connectionTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewChecker creates a checker bound to a pool and config-supplied tuning.
func NewChecker(p *backend.Pool, m *metrics.Collector, hc config.HealthConfig) *Checker {
	return &Checker{
		bh:                BackendHealth{Status: StatusUnknown},
		pool:              p,
		metrics:           m,
		interval:          hc.Interval,
		failureThreshold:  hc.FailureThreshold,
		connectionTimeout: hc.ConnectionTimeout,
		stopCh:            make(chan struct{}),
	}
}

// Start begins periodic health checking in a background goroutine.
func (c *Checker) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	slog.Info("health checker started", "interval", c.interval, "threshold", c.failureThreshold)
}

// Stop stops the health checker. Safe to call multiple times.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	slog.Info("health checker stopped")
}

func (c *Checker) run() {
	c.check()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.check()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Checker) check() {
	start := time.Now()
	healthy := c.pingBackend()
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.CommandCompleted("_healthcheck", elapsed, healthy)
	}
	c.updateStatus(healthy)
}

// pingBackend acquires a real pool connection and runs Ping over it,
// validating the full authenticated query path rather than just the TCP port.
func (c *Checker) pingBackend() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.connectionTimeout)
	defer cancel()

	pc, err := c.pool.Acquire(ctx)
	if err != nil {
		c.setLastError("acquire for health check: " + err.Error())
		return false
	}
	defer c.pool.Release(pc)

	if err := pc.Ping(); err != nil {
		c.setLastError("ping: " + err.Error())
		return false
	}
	c.setLastError("")
	return true
}

func (c *Checker) setLastError(errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bh.LastError = errMsg
}

func (c *Checker) updateStatus(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bh.LastCheck = time.Now()

	if healthy {
		if c.bh.ConsecutiveFailures > 0 {
			slog.Info("backend recovered", "failures", c.bh.ConsecutiveFailures)
		}
		c.bh.Status = StatusHealthy
		c.bh.ConsecutiveFailures = 0
		c.bh.LastError = ""
	} else {
		c.bh.ConsecutiveFailures++
		if c.bh.ConsecutiveFailures >= c.failureThreshold {
			if c.bh.Status != StatusUnhealthy {
				slog.Warn("backend marked unhealthy", "failures", c.bh.ConsecutiveFailures, "error", c.bh.LastError)
			}
			c.bh.Status = StatusUnhealthy
		}
	}

	if c.metrics != nil {
		c.metrics.SetBackendHealth(c.bh.Status == StatusHealthy)
	}
}

// IsHealthy returns whether the backend is healthy. Unknown is treated as
// healthy so the gateway doesn't reject traffic before the first probe runs.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bh.Status != StatusUnhealthy
}

// GetStatus returns the current health snapshot.
func (c *Checker) GetStatus() BackendHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bh
}

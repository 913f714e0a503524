// Package backend holds the connection pool and PostgreSQL wire-protocol
// client the gateway uses to talk to its single backend database. Unlike
// the multi-tenant pool this is descended from, there is exactly one
// backend tuple (host/port/database/user/password) per gateway instance,
// matching spec §6's external-interface contract.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Config is the subset of pool tuning knobs spec §4.5 names.
type Config struct {
	Host                string
	Port                int
	Database            string
	Username            string
	Password            string
	Min                 int
	Max                 int
	Initial             int
	ConnectTimeout      time.Duration
	IdleTimeout         time.Duration
	MaxLifetime         time.Duration
	ValidationInterval  time.Duration
	AutoReconnect       bool
	ValidateConnections bool
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Active    int
	Idle      int
	Total     int
	Waiting   int
	Max       int
	Min       int
	Exhausted int64
}

// ErrShuttingDown is returned by Acquire once Shutdown has been called.
var ErrShuttingDown = fmt.Errorf("backend: pool is shutting down")

// ErrAcquireTimeout is returned when no handle became available before the
// configured connect timeout (or the caller's context deadline) elapsed.
var ErrAcquireTimeout = fmt.Errorf("backend: acquire timed out, pool exhausted")

// OnExhausted is invoked (outside the pool mutex) whenever Acquire has to
// block because the pool is at max and all handles are in use.
type OnExhausted func()

// Pool manages the single backend's connection lifecycle: acquire,
// release, idle reaping and max-lifetime expiry. Idle handles are probed
// only on Acquire, when ValidateConnections is set; the reaper does not
// probe them and ValidationInterval is not read.
type Pool struct {
	cfg Config

	mu   sync.Mutex
	cond *sync.Cond

	idle    []*PooledConn
	active  map[*PooledConn]struct{}
	total   int
	waiting int

	exhausted int64
	closed    bool
	stopCh    chan struct{}

	onExhausted OnExhausted
}

// New builds a Pool and starts its background reaper and warm-up tasks.
func New(cfg Config) *Pool {
	p := &Pool{
		cfg:    cfg,
		idle:   make([]*PooledConn, 0),
		active: make(map[*PooledConn]struct{}),
		stopCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.reapLoop()
	if cfg.Initial > 0 {
		go p.warmUp()
	}
	return p
}

// SetOnExhausted registers a callback fired (without the pool mutex held)
// every time Acquire must wait because the pool is at max.
func (p *Pool) SetOnExhausted(cb OnExhausted) {
	p.mu.Lock()
	p.onExhausted = cb
	p.mu.Unlock()
}

func (p *Pool) warmUp() {
	for i := 0; i < p.cfg.Initial; i++ {
		p.mu.Lock()
		if p.closed || p.total >= p.cfg.Max {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		pc, err := p.dial(context.Background())
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			slog.Warn("backend pool warm-up connection failed", "index", i+1, "target", p.cfg.Initial, "err", err)
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			pc.Close()
			return
		}
		pc.MarkIdle()
		p.idle = append(p.idle, pc)
		p.mu.Unlock()
	}
	slog.Info("backend pool warmed up", "count", p.cfg.Initial)
}

// Acquire borrows exclusive use of one connection, blocking until one is
// available, the pool shuts down, or the deadline elapses.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	deadline := time.Now().Add(p.cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	p.mu.Lock()
	for {
		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if p.closed {
			p.mu.Unlock()
			return nil, ErrShuttingDown
		}

		for len(p.idle) > 0 {
			pc := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]

			if pc.IsExpired(p.cfg.MaxLifetime) {
				pc.Close()
				p.total--
				continue
			}

			if p.cfg.ValidateConnections {
				p.mu.Unlock()
				err := pc.Ping()
				p.mu.Lock()
				if err != nil {
					pc.Close()
					p.total--
					continue
				}
			}

			pc.MarkActive()
			p.active[pc] = struct{}{}
			p.mu.Unlock()
			return pc, nil
		}

		if p.total < p.cfg.Max {
			p.total++
			p.mu.Unlock()

			pc, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, fmt.Errorf("backend: dialing %s:%d: %w", p.cfg.Host, p.cfg.Port, err)
			}

			pc.MarkActive()
			p.mu.Lock()
			p.active[pc] = struct{}{}
			p.mu.Unlock()
			return pc, nil
		}

		p.waiting++
		p.exhausted++
		cb := p.onExhausted
		p.mu.Unlock()

		if cb != nil {
			cb()
		}

		p.mu.Lock()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.waiting--
			p.mu.Unlock()
			return nil, ErrAcquireTimeout
		}

		timer := time.AfterFunc(remaining, func() {
			p.cond.Broadcast()
		})
		p.cond.Wait()
		timer.Stop()
		p.waiting--

		if p.closed {
			p.mu.Unlock()
			return nil, ErrShuttingDown
		}
		if time.Now().After(deadline) {
			p.mu.Unlock()
			return nil, ErrAcquireTimeout
		}
		// loop, mu held
	}
}

// Release returns a handle to the idle set, or destroys it if it has
// outlived MaxLifetime or the pool has been shut down. It does not check
// whether the handle is broken; a broken handle goes back to idle.
// Idempotent: releasing the same
// handle twice is a no-op the second time, since it is no longer in active.
func (p *Pool) Release(pc *PooledConn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, inUse := p.active[pc]; !inUse {
		return
	}
	delete(p.active, pc)

	if p.closed || pc.IsExpired(p.cfg.MaxLifetime) {
		pc.Close()
		p.total--
		p.cond.Signal()
		return
	}

	pc.MarkIdle()
	p.idle = append(p.idle, pc)
	// Signal (not Broadcast) wakes exactly one waiter, avoiding a thundering
	// herd where all waiters wake to contend over a single freed handle.
	p.cond.Signal()
}

// Discard removes a handle from the active set and destroys it without
// returning it to idle. The handlers do not call it: they return every
// borrowed handle through PooledConn.Return, including after a query error.
func (p *Pool) Discard(pc *PooledConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, inUse := p.active[pc]; !inUse {
		return
	}
	delete(p.active, pc)
	pc.Close()
	p.total--
	p.cond.Signal()
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:    len(p.active),
		Idle:      len(p.idle),
		Total:     p.total,
		Waiting:   p.waiting,
		Max:       p.cfg.Max,
		Min:       p.cfg.Min,
		Exhausted: p.exhausted,
	}
}

// Shutdown flips the closed flag, wakes every waiter, closes idle handles
// immediately, and blocks until active handles drain or deadline elapses.
func (p *Pool) Shutdown(deadline time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)
	p.cond.Broadcast()

	for _, pc := range p.idle {
		pc.Close()
		p.total--
	}
	p.idle = p.idle[:0]
	activeCount := len(p.active)
	p.mu.Unlock()

	if activeCount == 0 {
		return
	}

	slog.Info("backend pool draining active connections", "count", activeCount)
	deadlineAt := time.After(deadline)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			if len(p.active) == 0 {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		case <-deadlineAt:
			p.mu.Lock()
			for pc := range p.active {
				pc.Close()
				p.total--
			}
			p.active = make(map[*PooledConn]struct{})
			p.mu.Unlock()
			slog.Warn("backend pool force-closed active connections after shutdown deadline")
			return
		}
	}
}

func (p *Pool) dial(ctx context.Context) (*PooledConn, error) {
	addr := net.JoinHostPort(p.cfg.Host, fmt.Sprintf("%d", p.cfg.Port))
	dialer := net.Dialer{Timeout: p.cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	pc := NewPooledConn(conn, p)
	if err := authenticateStartup(conn, p.cfg.Username, p.cfg.Password, p.cfg.Database, pc); err != nil {
		pc.Close()
		return nil, fmt.Errorf("postgres startup: %w", err)
	}
	return pc, nil
}

// reapLoop periodically evicts idle connections past idleTimeout or
// maxLifetime and tops the pool back up toward Min.
func (p *Pool) reapLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	p.mu.Lock()
	kept := p.idle[:0]
	for _, pc := range p.idle {
		if pc.IsIdle(p.cfg.IdleTimeout) || pc.IsExpired(p.cfg.MaxLifetime) {
			pc.Close()
			p.total--
			continue
		}
		kept = append(kept, pc)
	}
	p.idle = kept
	needed := p.cfg.Min - p.total
	p.mu.Unlock()

	for i := 0; i < needed; i++ {
		p.mu.Lock()
		if p.closed || p.total >= p.cfg.Max {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		pc, err := p.dial(context.Background())
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			slog.Warn("backend pool replenish failed", "err", err)
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			pc.Close()
			return
		}
		pc.MarkIdle()
		p.idle = append(p.idle, pc)
		p.mu.Unlock()
	}
}

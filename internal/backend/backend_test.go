package backend

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// fakePooledConn builds a *PooledConn around an in-memory pipe, bypassing
// dial()/authenticateStartup() for pool-mechanics tests that don't need a
// live backend.
func fakePooledConn(t *testing.T, p *Pool) (*PooledConn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	pc := NewPooledConn(client, p)
	pc.SetAuthenticated(map[string]string{"server_version": "15.0"}, 1, 2)
	return pc, server
}

func TestPoolAcquireReleaseConservation(t *testing.T) {
	p := &Pool{
		cfg:    Config{Max: 2, ConnectTimeout: 50 * time.Millisecond},
		idle:   make([]*PooledConn, 0),
		active: make(map[*PooledConn]struct{}),
		stopCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	pc1, conn1 := fakePooledConn(t, p)
	defer conn1.Close()
	p.idle = append(p.idle, pc1)
	p.total = 1

	got, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != pc1 {
		t.Fatal("expected to acquire the pre-seeded idle connection")
	}
	if len(p.active) != 1 || len(p.idle) != 0 {
		t.Fatalf("expected 1 active, 0 idle; got active=%d idle=%d", len(p.active), len(p.idle))
	}

	p.Release(got)
	if len(p.active) != 0 || len(p.idle) != 1 {
		t.Fatalf("expected 0 active, 1 idle after release; got active=%d idle=%d", len(p.active), len(p.idle))
	}
}

func TestPoolIdempotentRelease(t *testing.T) {
	p := &Pool{
		cfg:    Config{Max: 2},
		idle:   make([]*PooledConn, 0),
		active: make(map[*PooledConn]struct{}),
		stopCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	pc, conn := fakePooledConn(t, p)
	defer conn.Close()
	p.active[pc] = struct{}{}
	p.total = 1

	p.Release(pc)
	if len(p.idle) != 1 {
		t.Fatalf("expected 1 idle after first release, got %d", len(p.idle))
	}
	p.Release(pc) // second release of the same handle must be a no-op
	if len(p.idle) != 1 {
		t.Fatalf("expected idempotent release to leave idle count at 1, got %d", len(p.idle))
	}
}

func TestPoolAcquireTimesOutWhenExhausted(t *testing.T) {
	p := &Pool{
		cfg:    Config{Max: 1, ConnectTimeout: 30 * time.Millisecond},
		idle:   make([]*PooledConn, 0),
		active: make(map[*PooledConn]struct{}),
		stopCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	pc, conn := fakePooledConn(t, p)
	defer conn.Close()
	p.active[pc] = struct{}{}
	p.total = 1

	_, err := p.Acquire(context.Background())
	if err != ErrAcquireTimeout {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
}

func TestPoolAcquireAfterShutdown(t *testing.T) {
	p := &Pool{
		cfg:    Config{Max: 1, ConnectTimeout: 50 * time.Millisecond},
		idle:   make([]*PooledConn, 0),
		active: make(map[*PooledConn]struct{}),
		stopCh: make(chan struct{}),
		closed: true,
	}
	p.cond = sync.NewCond(&p.mu)

	if _, err := p.Acquire(context.Background()); err != ErrShuttingDown {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestParseRowsAffected(t *testing.T) {
	cases := map[string]int64{
		"INSERT 0 3":   3,
		"UPDATE 2":     2,
		"DELETE 1":     1,
		"SELECT 5":     5,
		"CREATE TABLE": 0,
		"DROP TABLE":   0,
	}
	for tag, want := range cases {
		if got := parseRowsAffected(tag); got != want {
			t.Errorf("parseRowsAffected(%q) = %d, want %d", tag, got, want)
		}
	}
}

func TestDecodeTextValue(t *testing.T) {
	if v := decodeTextValue(oidInt4, []byte("42")); v != int64(42) {
		t.Fatalf("expected int64(42), got %#v", v)
	}
	if v := decodeTextValue(oidBool, []byte("t")); v != true {
		t.Fatalf("expected true, got %#v", v)
	}
	if v := decodeTextValue(oidFloat8, []byte("3.5")); v != 3.5 {
		t.Fatalf("expected 3.5, got %#v", v)
	}
	if v := decodeTextValue(oidText, []byte("hi")); v != "hi" {
		t.Fatalf("expected \"hi\", got %#v", v)
	}
}

// Package pool implements the bounded Connection Pool of spec.md §4.3:
// min/max size bounds, context-affinity, lease-tagged borrow/return, and
// wait_timeout_s-bounded overflow. Grounded on the teacher's
// internal/mqtt/pool.go (fixed round-robin client array), generalized from
// a static array to a dynamically sized, min/max-bounded collection.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/metrics"
	"github.com/ibs-source/mqttpool/internal/ports"
	"github.com/ibs-source/mqttpool/internal/protocol"
	"github.com/ibs-source/mqttpool/internal/timeutil"
	"github.com/ibs-source/mqttpool/pkg/circuitbreaker"
)

// Dialer opens one new Connection. Production code uses protocol.Dial;
// tests inject a fake to avoid a live broker.
type Dialer func(ctx context.Context) (*protocol.Connection, error)

type idleEntry struct {
	conn       *protocol.Connection
	returnedAt time.Time
}

// Pool is one bounded collection of Connections against a single broker
// identity (spec.md §4.3). Concurrent borrow is bound by a weighted
// semaphore sized at max, which gives FIFO waiter ordering for free and
// turns wait_timeout_s into a context deadline on Acquire.
type Pool struct {
	name   string
	cfg    config.ClientConfig
	poolCfg config.PoolConfig
	logger ports.Logger
	dial   Dialer
	metrics *metrics.Registry
	breaker *circuitbreaker.CircuitBreaker

	sem *semaphore.Weighted

	mu       sync.Mutex
	idle     []idleEntry
	live     int
	leased   map[uint64]*protocol.Connection
	affinity map[string]*protocol.Connection
	closed   bool

	nextLease atomic.Uint64
}

// New builds a Pool and warms it to min connections. reg collects the
// ConnectionMetrics/ErrorMetrics counters of spec.md §4.9; a nil reg is
// replaced with a private, unshared Registry so the Pool always has
// somewhere to record against.
func New(ctx context.Context, name string, cfg config.ClientConfig, poolCfg config.PoolConfig, logger ports.Logger, reg *metrics.Registry, dial Dialer) (*Pool, error) {
	if dial == nil {
		dial = func(ctx context.Context) (*protocol.Connection, error) {
			return protocol.Dial(ctx, cfg, logger)
		}
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	p := &Pool{
		name:    name,
		cfg:     cfg,
		poolCfg: poolCfg,
		logger:  logger.WithFields(ports.Field{Key: "component", Value: "pool"}, ports.Field{Key: "pool", Value: name}),
		dial:    dial,
		metrics: reg,
		breaker: circuitbreaker.New(name, 0.5, 2, 30*time.Second, 1, 5),
		sem:     semaphore.NewWeighted(int64(poolCfg.MaxConnections)),
		leased:  make(map[uint64]*protocol.Connection),
		affinity: make(map[string]*protocol.Connection),
	}
	if err := p.ensureMin(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Lease is a non-owning handle on one borrowed Connection (spec.md §4.3).
// Release must be called exactly once.
type Lease struct {
	ID   uint64
	Conn *protocol.Connection

	pool     *Pool
	released atomic.Bool
}

// Release returns the Connection to its Pool. Calling it twice surfaces
// DoubleReleaseError.
func (l *Lease) Release() error {
	if !l.released.CompareAndSwap(false, true) {
		return &DoubleReleaseError{LeaseID: l.ID}
	}
	return l.pool.release(l.ID)
}

// Borrow hands out a Connection, blocking up to pool_cfg.WaitTimeoutS
// (spec.md §4.3). A non-empty contextID pins the same Connection across
// repeated borrows from the same logical caller.
func (p *Pool) Borrow(ctx context.Context, contextID string) (*Lease, error) {
	budget := time.Duration(p.poolCfg.WaitTimeoutS) * time.Second
	deadline := timeutil.Deadline(ctx, time.Now(), budget)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		return nil, &ExhaustedError{PoolName: p.name, Waited: budget.String()}
	}

	conn, err := p.acquireConnection(ctx, contextID)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	id := p.nextLease.Add(1)
	p.mu.Lock()
	p.leased[id] = conn
	p.mu.Unlock()

	return &Lease{ID: id, Conn: conn, pool: p}, nil
}

// acquireConnection resolves one Connection for a granted borrow permit:
// the affinity-bound one if present and idle, otherwise an idle one,
// otherwise a freshly dialed one (spec.md §4.3's borrow protocol). The
// underlying handshake runs without the pool lock held.
func (p *Pool) acquireConnection(ctx context.Context, contextID string) (*protocol.Connection, error) {
	p.mu.Lock()
	if contextID != "" {
		if bound, ok := p.affinity[contextID]; ok {
			if idx := p.findIdle(bound); idx >= 0 {
				p.idle = append(p.idle[:idx], p.idle[idx+1:]...)
				p.mu.Unlock()
				return bound, nil
			}
		}
	}
	if entry, ok := p.popIdle(); ok {
		p.mu.Unlock()
		conn := entry.conn
		if time.Since(entry.returnedAt) > time.Duration(p.poolCfg.MaxIdleTimeS)*time.Second {
			if !conn.Healthy() {
				p.destroy(conn)
				return p.createAndBind(ctx, contextID)
			}
		}
		p.bindAffinity(contextID, conn)
		return conn, nil
	}
	if p.live >= p.poolCfg.MaxConnections {
		p.mu.Unlock()
		return nil, &ExhaustedError{PoolName: p.name, Waited: "capacity reached"}
	}
	p.live++
	p.mu.Unlock()
	return p.createAndBind(ctx, contextID)
}

func (p *Pool) createAndBind(ctx context.Context, contextID string) (*protocol.Connection, error) {
	conn, err := p.dialWithBreaker(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return nil, err
	}
	p.bindAffinity(contextID, conn)
	return conn, nil
}

func (p *Pool) bindAffinity(contextID string, conn *protocol.Connection) {
	if contextID == "" {
		return
	}
	p.mu.Lock()
	p.affinity[contextID] = conn
	p.mu.Unlock()
}

// ReleaseContext drops the context-affinity binding (spec.md §4.3: "the
// binding is released when the context ends"). It does not return the
// Connection — the caller must still Release its outstanding Lease.
func (p *Pool) ReleaseContext(contextID string) {
	p.mu.Lock()
	delete(p.affinity, contextID)
	p.mu.Unlock()
}

func (p *Pool) findIdle(conn *protocol.Connection) int {
	for i, e := range p.idle {
		if e.conn == conn {
			return i
		}
	}
	return -1
}

func (p *Pool) popIdle() (idleEntry, bool) {
	if len(p.idle) == 0 {
		return idleEntry{}, false
	}
	e := p.idle[0]
	p.idle = p.idle[1:]
	return e, true
}

// destroy drops a connection from the live set without touching the
// semaphore (callers that hold a borrow permit release it themselves).
func (p *Pool) destroy(conn *protocol.Connection) {
	p.mu.Lock()
	p.live--
	for k, v := range p.affinity {
		if v == conn {
			delete(p.affinity, k)
		}
	}
	p.mu.Unlock()
	p.metrics.Connection.ActiveConnections.Add(-1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.KeepAlive)*time.Second)
	defer cancel()
	_ = conn.Disconnect(ctx, 0x00)
}

func (p *Pool) release(leaseID uint64) error {
	p.mu.Lock()
	conn, ok := p.leased[leaseID]
	if !ok {
		p.mu.Unlock()
		return &UnknownLeaseError{LeaseID: leaseID}
	}
	delete(p.leased, leaseID)
	p.mu.Unlock()

	if conn.Healthy() {
		p.mu.Lock()
		p.idle = append(p.idle, idleEntry{conn: conn, returnedAt: time.Now()})
		p.mu.Unlock()
	} else {
		p.destroy(conn)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.KeepAlive)*time.Second)
			defer cancel()
			if err := p.ensureMin(ctx); err != nil {
				p.logger.Warn("replenish after unhealthy return failed", ports.Field{Key: "error", Value: err})
			}
		}()
	}
	p.sem.Release(1)
	return nil
}

// ensureMin tops the pool up to pool_cfg.MinConnections, guarded by a
// circuit breaker so a down broker cannot be hammered with reconnect
// attempts (spec.md §4.3's steady-state invariant).
func (p *Pool) ensureMin(ctx context.Context) error {
	for {
		p.mu.Lock()
		need := p.live < p.poolCfg.MinConnections
		if need {
			p.live++
		}
		p.mu.Unlock()
		if !need {
			return nil
		}
		conn, err := p.dialWithBreaker(ctx)
		if err != nil {
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			return err
		}
		p.mu.Lock()
		p.idle = append(p.idle, idleEntry{conn: conn, returnedAt: time.Now()})
		p.mu.Unlock()
	}
}

// dialWithBreaker opens one new Connection, recording the attempt, the
// success/live-count bump, and a connect-category ErrorMetrics entry on
// failure (spec.md §4.9's ConnectionMetrics/ErrorMetrics[connect]).
func (p *Pool) dialWithBreaker(ctx context.Context) (*protocol.Connection, error) {
	p.metrics.Connection.ConnectAttempts.Add(1)
	var conn *protocol.Connection
	err := p.breaker.Execute(func() error {
		c, dialErr := p.dial(ctx)
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	})
	if err != nil {
		wrapped := fmt.Errorf("pool %q: %w", p.name, err)
		p.metrics.Error.Record(metrics.CategoryConnect, p.name, wrapped.Error(), time.Now())
		return nil, wrapped
	}
	p.metrics.Connection.ConnectSuccesses.Add(1)
	p.metrics.Connection.ActiveConnections.Add(1)
	return conn, nil
}

// LiveCount returns the number of connections currently tracked as live
// (idle + leased), for tests and diagnostics.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Shutdown disconnects every Connection and marks the pool closed.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	conns := make([]*protocol.Connection, 0, len(p.idle)+len(p.leased))
	for _, e := range p.idle {
		conns = append(conns, e.conn)
	}
	for _, c := range p.leased {
		conns = append(conns, c)
	}
	p.idle = nil
	p.live = 0
	p.mu.Unlock()

	p.metrics.Connection.ActiveConnections.Add(-int64(len(conns)))

	var lastErr error
	for _, c := range conns {
		if err := c.Disconnect(ctx, 0x00); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

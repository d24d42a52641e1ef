package liteorm

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// A Pool keeps one Session per database target and runs operations on them
// from background goroutines. Operations on one target are serialized by
// that Session's guard; operations on different targets run in parallel,
// bounded by Config.PoolWorkers.
type Pool struct {
	cfg    Config
	opts   []Option
	logger *slog.Logger
	sem    *semaphore.Weighted
	now    func() time.Time
	open   func(ctx context.Context, target string) (*Session, error)

	mu       sync.Mutex // protects sessions, closed and every pooled entry
	sessions map[string]*pooled
	closed   bool

	inflight sync.WaitGroup
}

type pooled struct {
	session  *Session
	err      error
	ready    chan struct{} // closed once session or err is set
	lastUsed time.Time
	busy     int
	// pinned sessions were handed out by Get and are never evicted.
	pinned bool
}

// NewPool returns an empty pool. cfg applies to every session the pool
// opens; opts may add a logger or tracer provider.
func NewPool(cfg Config, opts ...Option) *Pool {
	opts = append(append([]Option(nil), opts...), WithConfig(cfg))
	o := buildOptions(opts)
	workers := cfg.PoolWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		cfg:    cfg,
		opts:   opts,
		logger: o.logger,
		sem:    semaphore.NewWeighted(int64(workers)),
		now:    time.Now,
		open: func(ctx context.Context, target string) (*Session, error) {
			return Open(ctx, target, opts...)
		},
		sessions: make(map[string]*pooled),
	}
}

func errPoolClosed() error { return newError(KindClosed, "pool", "", "pool is closed") }

// Get returns the pool's open Session for target, opening it on first use.
// The caller must hold the session's guard while using it, as WithSession
// does. A session returned by Get is never evicted as idle; it stays open
// until the pool is closed.
func (p *Pool) Get(ctx context.Context, target string) (*Session, error) {
	e, err := p.entry(ctx, target)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	e.pinned = true
	p.mu.Unlock()
	p.release(e)
	return e.session, nil
}

// entry returns target's pooled entry with busy raised, opening the
// session if needed. The caller must release it. Sessions are opened
// without holding p.mu; concurrent callers for the same target wait for
// the first one's open.
func (p *Pool) entry(ctx context.Context, target string) (*pooled, error) {
	key := strings.TrimSpace(target)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPoolClosed()
	}
	p.inflight.Add(1)
	defer p.inflight.Done()
	p.evictIdleLocked()
	e, found := p.sessions[key]
	if !found {
		e = &pooled{ready: make(chan struct{})}
		p.sessions[key] = e
	}
	e.busy++
	p.mu.Unlock()

	if !found {
		s, err := p.open(ctx, key)
		p.mu.Lock()
		e.session, e.err = s, err
		if err != nil && p.sessions[key] == e {
			delete(p.sessions, key)
		}
		close(e.ready)
		p.mu.Unlock()
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		p.release(e)
		return nil, ctx.Err()
	}
	if e.err != nil {
		p.release(e)
		return nil, e.err
	}
	return e, nil
}

func (p *Pool) release(e *pooled) {
	p.mu.Lock()
	e.busy--
	e.lastUsed = p.now()
	p.mu.Unlock()
}

// evictIdleLocked closes sessions left unused for longer than
// Config.PoolIdleTimeout. A session whose guard is held is left alone.
func (p *Pool) evictIdleLocked() {
	if p.cfg.PoolIdleTimeout <= 0 {
		return
	}
	now := p.now()
	for key, e := range p.sessions {
		if e.busy > 0 || e.pinned || e.session == nil || now.Sub(e.lastUsed) <= p.cfg.PoolIdleTimeout {
			continue
		}
		unlock, ok := e.session.tryLock()
		if !ok {
			continue
		}
		if err := e.session.Close(); err != nil {
			p.logger.Warn("liteorm pool: closing idle session", "target", key, "error", err)
		}
		unlock()
		delete(p.sessions, key)
		p.logger.Info("liteorm pool: evicted idle session", "target", key)
	}
}

// Len returns the number of open pooled sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Close waits for running operations, then closes every session, each
// under its guard. Operations submitted afterwards fail with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()

	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*pooled)
	p.mu.Unlock()

	var errs []error
	for _, e := range sessions {
		unlock, err := e.session.Lock(context.Background())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, e.session.Close())
		unlock()
	}
	return errors.Join(errs...)
}

// WithSession runs fn on target's session with a worker slot and the
// session's guard held. Close waits for it to return.
func (p *Pool) WithSession(ctx context.Context, target string, fn func(*Session) error) error {
	if !p.begin() {
		return errPoolClosed()
	}
	defer p.inflight.Done()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	e, err := p.entry(ctx, target)
	if err != nil {
		return err
	}
	defer p.release(e)
	return e.session.WithLock(ctx, fn)
}

// begin registers an operation about to start, unless the pool is closed.
func (p *Pool) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

// Submit runs op on target's session in the background and returns a
// Future for its result.
func Submit[T any](ctx context.Context, p *Pool, target string, op func(context.Context, *Session) (T, error)) *Future[T] {
	f := newFuture[T]()
	if !p.begin() {
		var zero T
		f.resolve(zero, errPoolClosed())
		return f
	}
	go func() {
		defer p.inflight.Done()
		var v T
		err := p.WithSession(ctx, target, func(s *Session) error {
			var err error
			v, err = op(ctx, s)
			return err
		})
		f.resolve(v, err)
	}()
	return f
}

// A Future is the eventual result of an operation run by a Pool.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx is done. Giving up on
// ctx does not cancel the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

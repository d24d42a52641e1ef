package liteorm

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// A Session is one open connection to a database file together with the
// mappings, prepared statements and transaction state that belong to it.
//
// A Session is not safe for concurrent use. Callers sharing one must take
// its guard with Lock or WithLock; a Pool does so for every operation.
type Session struct {
	id     uuid.UUID
	target string
	opts   options
	logger *slog.Logger
	tracer trace.Tracer
	guard  chan struct{}

	db   *sql.DB
	conn *sql.Conn

	mu       sync.Mutex // protects mappings
	mappings map[string]*TableMapping

	stmts        map[string]*sql.Stmt
	lastInsertID *sql.Stmt

	tx           *Transaction
	savepointSeq int
}

// New returns an unopened Session for target, a file path or ":memory:".
func New(target string, opts ...Option) (*Session, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, newError(KindOther, "new session", "", "empty target")
	}
	o := buildOptions(opts)
	id := uuid.New()
	return &Session{
		id:       id,
		target:   target,
		opts:     o,
		logger:   o.logger.With("liteorm.session", id.String()),
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		guard:    make(chan struct{}, 1),
		mappings: make(map[string]*TableMapping),
	}, nil
}

// Open returns an open Session for target.
func Open(ctx context.Context, target string, opts ...Option) (*Session, error) {
	s, err := New(target, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open connects the session. Opening an open session does nothing.
func (s *Session) Open(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	db, err := sql.Open(driverName, dataSourceName(s.target))
	if err != nil {
		return wrapEngine("open", "", err)
	}
	// Transactions and savepoints are connection state.
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return wrapEngine("open", "", err)
	}
	s.db, s.conn = db, conn
	s.stmts = make(map[string]*sql.Stmt)

	if err := s.configure(ctx); err != nil {
		s.Close()
		return err
	}
	s.logger.DebugContext(ctx, "liteorm session opened", "target", s.target, "driver", driverType)
	return nil
}

func (s *Session) configure(ctx context.Context) error {
	cfg := s.opts.cfg
	pragmas := []string{
		"PRAGMA busy_timeout = " + strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10),
	}
	if cfg.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	} else {
		pragmas = append(pragmas, "PRAGMA foreign_keys = OFF")
	}
	if cfg.JournalMode != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = "+cfg.JournalMode)
	}
	for _, p := range pragmas {
		if _, err := s.exec(ctx, "open", "", p, nil); err != nil {
			return err
		}
	}
	return nil
}

// Close rolls back any active transaction and releases the connection.
// Closing a closed session does nothing.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	var errs []error
	if s.tx != nil {
		s.logger.Warn("liteorm session closed with an active transaction; rolling back")
		if err := s.tx.Rollback(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, stmt := range s.stmts {
		errs = append(errs, stmt.Close())
	}
	if s.lastInsertID != nil {
		errs = append(errs, s.lastInsertID.Close())
	}
	errs = append(errs, s.conn.Close(), s.db.Close())
	s.conn, s.db, s.stmts, s.lastInsertID = nil, nil, nil, nil
	if err := errors.Join(errs...); err != nil {
		return wrapEngine("close", "", err)
	}
	return nil
}

func (s *Session) IsOpen() bool { return s.conn != nil }

// Target is the normalized database target.
func (s *Session) Target() string { return s.target }

// ID identifies the session in logs and spans.
func (s *Session) ID() uuid.UUID { return s.id }

// Config returns the configuration the session was created with.
func (s *Session) Config() Config { return s.opts.cfg }

func (s *Session) checkOpen(op string) error {
	if s.conn == nil {
		return newError(KindClosed, op, "", "session %s is not open", s.target)
	}
	return nil
}

// Lock takes the session's guard, waiting until it is free or ctx is done.
// The guard is not reentrant: code holding it must not call Lock again.
func (s *Session) Lock(ctx context.Context) (unlock func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.guard <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-s.guard }) }, nil
}

// tryLock takes the guard only if it is free.
func (s *Session) tryLock() (unlock func(), ok bool) {
	select {
	case s.guard <- struct{}{}:
	default:
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { <-s.guard }) }, true
}

// WithLock runs fn with the session's guard held and passes the session in.
// Everything fn does with it happens under the one acquisition.
func (s *Session) WithLock(ctx context.Context, fn func(*Session) error) error {
	unlock, err := s.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(s)
}

// Execute runs a statement and returns the number of rows it changed.
func (s *Session) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return s.exec(ctx, "execute", "", query, args)
}

func (s *Session) exec(ctx context.Context, op, table, query string, args []any) (int64, error) {
	if err := s.checkOpen(op); err != nil {
		return 0, err
	}
	s.traceCommand(ctx, query, args)
	ctx, span := s.startSpan(ctx, "liteorm.exec", query)
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		err = wrapEngine(op, table, err)
		endSpan(span, err)
		return 0, err
	}
	n, err := res.RowsAffected()
	err = wrapEngine(op, table, err)
	endSpan(span, err)
	return n, err
}

// ExecuteScalar runs a query and returns the first column of its first row,
// or nil when it returns no rows.
func (s *Session) ExecuteScalar(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	err := s.scalar(ctx, "execute scalar", query, args, &v)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// Scalar runs a query and converts the first column of its first row to T.
// It fails with ErrNotFound when the query returns no rows.
func Scalar[T any](ctx context.Context, s *Session, query string, args ...any) (T, error) {
	var v T
	if err := s.scalar(ctx, "scalar", query, args, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func (s *Session) scalar(ctx context.Context, op, query string, args []any, dest any) error {
	if err := s.checkOpen(op); err != nil {
		return err
	}
	s.traceCommand(ctx, query, args)
	ctx, span := s.startSpan(ctx, "liteorm.scalar", query)
	err := s.conn.QueryRowContext(ctx, query, args...).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		err = newError(KindNotFound, op, "", "query returned no rows")
	} else {
		err = wrapEngine(op, "", err)
	}
	endSpan(span, err)
	return err
}

// Mapping returns the session's mapping for record type T, deriving it on
// first use.
func Mapping[T any, P Record[T]](s *Session) (*TableMapping, error) {
	name := typeNameOf[T]()
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.mappings[name]; ok {
		return m, nil
	}
	m, err := DeriveMapping[T, P]()
	if err != nil {
		return nil, err
	}
	s.mappings[name] = m
	return m, nil
}

// prepared returns a statement prepared once per session and query text.
func (s *Session) prepared(ctx context.Context, op, query string) (*sql.Stmt, error) {
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, wrapEngine(op, "", err)
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// lastInsertRowID returns the rowid of the most recent successful insert
// on the session's connection.
func (s *Session) lastInsertRowID(ctx context.Context) (int64, error) {
	if s.lastInsertID == nil {
		stmt, err := s.conn.PrepareContext(ctx, "SELECT last_insert_rowid() as Id")
		if err != nil {
			return 0, wrapEngine("last insert id", "", err)
		}
		s.lastInsertID = stmt
	}
	var id int64
	if err := s.lastInsertID.QueryRowContext(ctx).Scan(&id); err != nil {
		return 0, wrapEngine("last insert id", "", err)
	}
	return id, nil
}

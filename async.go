package liteorm

import "context"

// An AsyncSession runs session operations for one target on a Pool.
// Every method returns immediately with a Future.
type AsyncSession struct {
	pool   *Pool
	target string
}

// Async returns the asynchronous view of target's pooled session.
func (p *Pool) Async(target string) *AsyncSession {
	return &AsyncSession{pool: p, target: target}
}

func (a *AsyncSession) Target() string { return a.target }

func (a *AsyncSession) Execute(ctx context.Context, query string, args ...any) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return s.Execute(ctx, query, args...)
	})
}

func (a *AsyncSession) ExecuteScalar(ctx context.Context, query string, args ...any) *Future[any] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (any, error) {
		return s.ExecuteScalar(ctx, query, args...)
	})
}

// RunInTransaction runs fn inside a transaction on the pooled session. The
// guard is held for the whole of fn.
func (a *AsyncSession) RunInTransaction(ctx context.Context, fn func(*Session) error) *Future[struct{}] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (struct{}, error) {
		return struct{}{}, s.RunInTransaction(ctx, fn)
	})
}

func CreateTableAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, createIndexes bool) *Future[int] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int, error) {
		return CreateTable[T, P](ctx, s, createIndexes)
	})
}

func DropTableAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return DropTable[T, P](ctx, s)
	})
}

func ClearTableAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return ClearTable[T, P](ctx, s)
	})
}

func InsertAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, obj P, cr ConflictResolution) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return Insert[T, P](ctx, s, obj, cr)
	})
}

// InsertAllAsync inserts objs in one transaction.
func InsertAllAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, objs []P) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return InsertAll[T, P](ctx, s, objs, true)
	})
}

func InsertDefaultsAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, cr ConflictResolution) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return InsertDefaults[T, P](ctx, s, cr)
	})
}

func UpdateAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, obj P) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return Update[T, P](ctx, s, obj)
	})
}

func UpdateAllColumnAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, column string, value any) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return UpdateAllColumn[T, P](ctx, s, column, value)
	})
}

func DeleteAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, obj P) *Future[int64] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (int64, error) {
		return Delete[T, P](ctx, s, obj)
	})
}

func GetAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, keys ...any) *Future[P] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (P, error) {
		return Get[T, P](ctx, s, keys...)
	})
}

func FindAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, keys ...any) *Future[P] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) (P, error) {
		return Find[T, P](ctx, s, keys...)
	})
}

// QueryAsync runs query and collects every row before resolving.
func QueryAsync[T any, P Record[T]](ctx context.Context, a *AsyncSession, query string, args ...any) *Future[[]P] {
	return Submit(ctx, a.pool, a.target, func(ctx context.Context, s *Session) ([]P, error) {
		return Query[T, P](ctx, s, query, args...)
	})
}

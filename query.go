package liteorm

import (
	"context"
	"database/sql"
	"iter"
)

// DeferredQuery returns a lazy sequence of T built from the rows of query.
// Nothing runs until the sequence is ranged over, and each range runs the
// query again. Result columns are matched to mapped columns by name; the
// rest are ignored. The rows are closed however the range ends.
//
//	for it, err := range liteorm.DeferredQuery[Item](ctx, s, "SELECT * FROM items") {
//		if err != nil {
//			return err
//		}
//		...
//	}
func DeferredQuery[T any, P Record[T]](ctx context.Context, s *Session, query string, args ...any) iter.Seq2[P, error] {
	return DeferredQueryFunc[T, P](ctx, s, nil, query, args...)
}

// DeferredQueryFunc is DeferredQuery with a hook called on every instance
// after its fields are filled and before it is yielded.
func DeferredQueryFunc[T any, P Record[T]](ctx context.Context, s *Session, created func(P), query string, args ...any) iter.Seq2[P, error] {
	return func(yield func(P, error) bool) {
		m, err := Mapping[T, P](s)
		if err != nil {
			yield(nil, err)
			return
		}
		var hook func(any)
		if created != nil {
			hook = func(obj any) { created(obj.(P)) }
		}
		for obj, err := range s.rows(ctx, m, nil, query, args, hook) {
			var p P
			if obj != nil {
				p = obj.(P)
			}
			if !yield(p, err) {
				return
			}
		}
	}
}

// Query runs query and returns every row as a T.
func Query[T any, P Record[T]](ctx context.Context, s *Session, query string, args ...any) ([]P, error) {
	var out []P
	for obj, err := range DeferredQuery[T, P](ctx, s, query, args...) {
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// GetList returns the rows of T whose primary key equals keys, given in
// key column order.
func GetList[T any, P Record[T]](ctx context.Context, s *Session, keys ...any) ([]P, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return nil, err
	}
	query, err := m.SelectByKeySQL()
	if err != nil {
		return nil, err
	}
	if len(keys) != len(m.PrimaryKeys) {
		return nil, m.keyCount("get", len(keys))
	}
	stmt, err := s.prepared(ctx, "get", query)
	if err != nil {
		return nil, err
	}
	var out []P
	for obj, err := range s.rows(ctx, m, stmt, query, keys, nil) {
		if err != nil {
			return nil, err
		}
		out = append(out, obj.(P))
	}
	return out, nil
}

// Get returns the row of T with the given primary key, or ErrNotFound.
func Get[T any, P Record[T]](ctx context.Context, s *Session, keys ...any) (P, error) {
	obj, err := Find[T, P](ctx, s, keys...)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		m, _ := Mapping[T, P](s)
		return nil, newError(KindNotFound, "get", m.TableName, "no row with key %v", keys)
	}
	return obj, nil
}

// Find is Get returning nil, without error, when no row matches.
func Find[T any, P Record[T]](ctx context.Context, s *Session, keys ...any) (P, error) {
	list, err := GetList[T, P](ctx, s, keys...)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// rows runs query, on stmt when given, and yields one new record of m per
// result row.
func (s *Session) rows(ctx context.Context, m *TableMapping, stmt *sql.Stmt, query string, args []any, created func(any)) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if err := s.checkOpen("query"); err != nil {
			yield(nil, err)
			return
		}
		s.traceCommand(ctx, query, args)
		ctx, span := s.startSpan(ctx, "liteorm.query", query)

		var rows *sql.Rows
		var err error
		if stmt != nil {
			rows, err = stmt.QueryContext(ctx, args...)
		} else {
			rows, err = s.conn.QueryContext(ctx, query, args...)
		}
		if err != nil {
			err = wrapEngine("query", m.TableName, err)
			endSpan(span, err)
			yield(nil, err)
			return
		}

		var iterErr error
		defer func() {
			if cerr := rows.Close(); iterErr == nil {
				iterErr = wrapEngine("query", m.TableName, cerr)
			}
			endSpan(span, iterErr)
		}()

		names, err := rows.Columns()
		if err != nil {
			iterErr = wrapEngine("query", m.TableName, err)
			yield(nil, iterErr)
			return
		}
		cols := make([]*Column, len(names))
		for i, name := range names {
			cols[i] = m.FindColumn(name)
		}
		dest := make([]any, len(cols))
		var discard any

		for rows.Next() {
			obj := m.newRecord()
			for i, c := range cols {
				if c != nil {
					dest[i] = c.field(obj)
				} else {
					dest[i] = &discard
				}
			}
			if err := rows.Scan(dest...); err != nil {
				iterErr = wrapEngine("query", m.TableName, err)
				yield(nil, iterErr)
				return
			}
			if created != nil {
				created(obj)
			}
			if !yield(obj, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			iterErr = wrapEngine("query", m.TableName, err)
			yield(nil, iterErr)
		}
	}
}

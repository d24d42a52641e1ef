package liteorm

import (
	"context"
	"database/sql"
	"fmt"
)

// Insert writes obj as a new row of its table and returns the number of
// rows inserted: 0 when cr is ConflictIgnore and the row was skipped.
// When the table has an auto-increment key and a row was inserted, the
// assigned id is written back into obj.
func Insert[T any, P Record[T]](ctx context.Context, s *Session, obj P, cr ConflictResolution) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, nilRecord("insert", m)
	}
	return s.insert(ctx, m, obj, cr)
}

func (s *Session) insert(ctx context.Context, m *TableMapping, obj any, cr ConflictResolution) (int64, error) {
	n, err := s.exec(ctx, "insert", m.TableName, m.InsertSQL(cr, false), m.InsertArgs(obj))
	if err != nil {
		return 0, err
	}
	if m.AutoIncrement == nil || n == 0 {
		return n, nil
	}
	id, err := s.lastInsertRowID(ctx)
	if err != nil {
		return n, err
	}
	if err := setInt64(m.AutoIncrement.field(obj), id); err != nil {
		return n, newError(KindInvalidMapping, "insert", m.TableName, "column %q: %v", m.AutoIncrement.Name, err)
	}
	return n, nil
}

func setInt64(dest any, v int64) error {
	switch d := dest.(type) {
	case *int64:
		*d = v
	case *int:
		*d = int(v)
	case *int32:
		*d = int32(v)
	case *uint64:
		*d = uint64(v)
	case **int64:
		*d = &v
	case sql.Scanner:
		return d.Scan(v)
	default:
		return fmt.Errorf("cannot store id in %T", dest)
	}
	return nil
}

// InsertDefaults inserts a row of T made only of column defaults.
func InsertDefaults[T any, P Record[T]](ctx context.Context, s *Session, cr ConflictResolution) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "insert", m.TableName, m.InsertSQL(cr, true), nil)
}

// InsertAll inserts every record in objs and returns the total inserted.
// With manageTx the inserts share one transaction and either all persist
// or none do.
func InsertAll[T any, P Record[T]](ctx context.Context, s *Session, objs []P, manageTx bool) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	var total int64
	err = s.maybeTx(ctx, manageTx, func() error {
		for _, obj := range objs {
			if obj == nil {
				return nilRecord("insert", m)
			}
			n, err := s.insert(ctx, m, obj, ConflictDefault)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Update writes every non-key column of obj to the row with obj's key and
// returns the number of rows changed.
func Update[T any, P Record[T]](ctx context.Context, s *Session, obj P) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, nilRecord("update", m)
	}
	return s.update(ctx, m, obj)
}

func (s *Session) update(ctx context.Context, m *TableMapping, obj any) (int64, error) {
	query, args, err := m.UpdateSQL(obj)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update", m.TableName, query, args)
}

// UpdateAll updates every record in objs and returns the total changed.
func UpdateAll[T any, P Record[T]](ctx context.Context, s *Session, objs []P, manageTx bool) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	var total int64
	err = s.maybeTx(ctx, manageTx, func() error {
		for _, obj := range objs {
			if obj == nil {
				return nilRecord("update", m)
			}
			n, err := s.update(ctx, m, obj)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateColumn sets one column of the row with the given key.
func UpdateColumn[T any, P Record[T]](ctx context.Context, s *Session, column string, value any, keys ...any) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	query, args, err := m.UpdateColumnSQL(column, value, keys)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update", m.TableName, query, args)
}

// UpdateAllColumn sets one column on every row of the table.
func UpdateAllColumn[T any, P Record[T]](ctx context.Context, s *Session, column string, value any) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	query, args, err := m.UpdateAllColumnSQL(column, value)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update", m.TableName, query, args)
}

// Delete removes the row with obj's key and returns the number removed.
func Delete[T any, P Record[T]](ctx context.Context, s *Session, obj P) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, nilRecord("delete", m)
	}
	query, args, err := m.DeleteSQL(obj)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "delete", m.TableName, query, args)
}

func nilRecord(op string, m *TableMapping) error {
	return newError(KindOther, op, m.TableName, "nil %s", m.typeName)
}

func (s *Session) maybeTx(ctx context.Context, manageTx bool, fn func() error) error {
	if manageTx {
		return s.runInTx(ctx, fn)
	}
	return fn()
}

package liteorm

import (
	"context"
	"strings"
)

// CreateTable brings the table for T in line with its mapping and returns
// the number of schema changes made.
//
//   - OldTable names an existing table and Table does not exist: rename it,
//     then migrate it.
//   - OldTable and Table both exist: ErrSchemaConflict.
//   - OldTable is set, but neither table exists: ErrSchemaConflict.
//   - Table does not exist: create it.
//   - Table exists: add the mapped columns it lacks.
//
// With createIndexes, each declared index that does not yet exist is
// created afterwards. Everything runs in one transaction, or in a savepoint
// when a transaction is already active, so a failure leaves the schema as
// it was. Calling CreateTable again for an unchanged type returns 0.
func CreateTable[T any, P Record[T]](ctx context.Context, s *Session, createIndexes bool) (int, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	return s.CreateTableFor(ctx, m, createIndexes)
}

// CreateTableFor is CreateTable for an already derived mapping.
func (s *Session) CreateTableFor(ctx context.Context, m *TableMapping, createIndexes bool) (int, error) {
	if err := s.checkOpen("create table"); err != nil {
		return 0, err
	}
	var changes int
	err := s.runInTx(ctx, func() error {
		exists, err := s.TableExists(ctx, m.TableName)
		if err != nil {
			return err
		}

		if m.OldTableName != "" && !strings.EqualFold(m.OldTableName, m.TableName) {
			oldExists, err := s.TableExists(ctx, m.OldTableName)
			if err != nil {
				return err
			}
			switch {
			case oldExists && exists:
				return newError(KindSchemaConflict, "create table", m.TableName,
					"cannot rename %q: table %q already exists", m.OldTableName, m.TableName)
			case oldExists:
				if _, err := s.exec(ctx, "rename table", m.TableName, m.RenameSQL(), nil); err != nil {
					return err
				}
				changes++
				exists = true
			case !exists:
				return newError(KindSchemaConflict, "create table", m.TableName,
					"cannot rename %q: no such table", m.OldTableName)
			}
		}

		if exists {
			n, err := s.MigrateTable(ctx, m)
			changes += n
			if err != nil {
				return err
			}
		} else {
			if _, err := s.exec(ctx, "create table", m.TableName, m.CreateSQL(), nil); err != nil {
				return err
			}
			changes++
		}

		if !createIndexes {
			return nil
		}
		for _, idx := range m.Indexes {
			had, err := s.indexExists(ctx, idx.Name)
			if err != nil {
				return err
			}
			if had {
				continue
			}
			if _, err := s.exec(ctx, "create index", m.TableName, m.CreateIndexSQL(idx), nil); err != nil {
				return err
			}
			changes++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changes, nil
}

// MigrateTable adds the mapped columns missing from an existing table, one
// ALTER TABLE per column, and returns how many were added. It stops at the
// first column that cannot be added; columns added before it stay unless
// the caller's transaction is rolled back.
func (s *Session) MigrateTable(ctx context.Context, m *TableMapping) (int, error) {
	existing, err := s.TableInfo(ctx, m.TableName)
	if err != nil {
		return 0, err
	}
	names := make([]string, len(existing))
	for i, c := range existing {
		names[i] = c.Name
	}
	added := 0
	for _, c := range MigrationDiff(names, m) {
		query, err := m.AddColumnSQL(c)
		if err != nil {
			return added, err
		}
		if _, err := s.exec(ctx, "migrate", m.TableName, query, nil); err != nil {
			return added, err
		}
		s.logger.InfoContext(ctx, "liteorm added column", "table", m.TableName, "column", c.Name)
		added++
	}
	return added, nil
}

// TableExists reports whether a table named name exists.
func (s *Session) TableExists(ctx context.Context, name string) (bool, error) {
	n, err := Scalar[int64](ctx, s,
		"SELECT count(*) FROM sqlite_master WHERE name = ? AND type = 'table'", name)
	return n > 0, err
}

func (s *Session) indexExists(ctx context.Context, name string) (bool, error) {
	n, err := Scalar[int64](ctx, s,
		"SELECT count(*) FROM sqlite_master WHERE name = ? AND type = 'index'", name)
	return n > 0, err
}

// TableNames lists the user tables of the database in name order.
func (s *Session) TableNames(ctx context.Context) ([]string, error) {
	entries, err := Query[MasterEntry](ctx, s,
		"SELECT type, name, tbl_name, rootpage, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// SchemaVersion returns PRAGMA schema_version, which the engine bumps on
// every schema change.
func (s *Session) SchemaVersion(ctx context.Context) (int64, error) {
	return Scalar[int64](ctx, s, "PRAGMA schema_version")
}

// TableInfo returns the columns of table as the engine reports them.
func (s *Session) TableInfo(ctx context.Context, table string) ([]*ColumnInfo, error) {
	return Query[ColumnInfo](ctx, s, "PRAGMA table_info("+quote(table)+")")
}

// IndexList returns the indexes of table.
func (s *Session) IndexList(ctx context.Context, table string) ([]*IndexListEntry, error) {
	return Query[IndexListEntry](ctx, s, "PRAGMA index_list("+pragmaArg(table)+")")
}

// IndexInfo returns the columns of the named index.
func (s *Session) IndexInfo(ctx context.Context, index string) ([]*IndexInfoEntry, error) {
	return Query[IndexInfoEntry](ctx, s, "PRAGMA index_info("+pragmaArg(index)+")")
}

// pragmaArg leaves plain identifiers bare and quotes anything else.
func pragmaArg(name string) string {
	if isPlainIdent(name) {
		return name
	}
	return quote(name)
}

// TableColumns returns the mapped columns of T that exist in its table.
func TableColumns[T any, P Record[T]](ctx context.Context, s *Session) ([]*Column, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return nil, err
	}
	info, err := s.TableInfo(ctx, m.TableName)
	if err != nil {
		return nil, err
	}
	var cols []*Column
	for _, ci := range info {
		if c := m.FindColumn(ci.Name); c != nil {
			cols = append(cols, c)
		}
	}
	return cols, nil
}

// DropTable drops the table for T if it exists.
func DropTable[T any, P Record[T]](ctx context.Context, s *Session) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "drop table", m.TableName, m.DropSQL(), nil)
}

// ClearTable deletes every row of the table for T and returns how many
// were deleted.
func ClearTable[T any, P Record[T]](ctx context.Context, s *Session) (int64, error) {
	m, err := Mapping[T, P](s)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "clear table", m.TableName, m.ClearSQL(), nil)
}

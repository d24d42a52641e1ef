package liteorm

import (
	"strings"
)

// ConflictResolution selects what the engine does when an INSERT would
// violate a constraint.
type ConflictResolution int

const (
	// ConflictDefault emits no OR clause; the engine aborts the statement.
	ConflictDefault ConflictResolution = iota
	ConflictRollback
	ConflictAbort
	ConflictFail
	ConflictIgnore
	ConflictReplace
)

func (cr ConflictResolution) String() string {
	switch cr {
	case ConflictDefault:
		return "default"
	case ConflictRollback:
		return "rollback"
	case ConflictAbort:
		return "abort"
	case ConflictFail:
		return "fail"
	case ConflictIgnore:
		return "ignore"
	case ConflictReplace:
		return "replace"
	}
	return "invalid"
}

func (cr ConflictResolution) clause() string {
	switch cr {
	case ConflictRollback:
		return " OR ROLLBACK"
	case ConflictAbort:
		return " OR ABORT"
	case ConflictFail:
		return " OR FAIL"
	case ConflictIgnore:
		return " OR IGNORE"
	case ConflictReplace:
		return " OR REPLACE"
	}
	return ""
}

func quote(ident string) string { return "[" + ident + "]" }

// isPlainIdent reports whether name is a letter or underscore followed by
// letters, digits and underscores, and so needs no quoting.
func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case '0' <= r && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func keyPredicate(keys []*Column) string {
	var b strings.Builder
	for i, c := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(quote(c.Name))
		b.WriteString("=?")
	}
	return b.String()
}

// definition renders the column as it appears inside CREATE TABLE and
// ALTER TABLE ... ADD COLUMN.
func (c *Column) definition() string {
	if c.AutoIncrement {
		return quote(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.declType(c.MaxLength))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

// CreateSQL returns the CREATE TABLE IF NOT EXISTS statement for the mapping.
// A lone auto-increment key is declared inline; every other key is declared
// as a trailing PRIMARY KEY constraint.
func (m *TableMapping) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quote(m.TableName))
	b.WriteString(" (")
	for i, c := range m.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.definition())
	}
	if len(m.PrimaryKeys) > 0 && m.AutoIncrement == nil {
		b.WriteString(", PRIMARY KEY (")
		for i, c := range m.PrimaryKeys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quote(c.Name))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

// RenameSQL returns the statement renaming OldTableName to TableName.
func (m *TableMapping) RenameSQL() string {
	return "ALTER TABLE " + quote(m.OldTableName) + " RENAME TO " + quote(m.TableName)
}

func (m *TableMapping) DropSQL() string {
	return "DROP TABLE IF EXISTS " + quote(m.TableName)
}

func (m *TableMapping) ClearSQL() string {
	return "DELETE FROM " + quote(m.TableName)
}

// InsertSQL returns a parameterized INSERT over the editable columns, in
// column order. With useDefaults, or when there is nothing to bind, the
// statement names no columns and the row takes its table defaults.
func (m *TableMapping) InsertSQL(cr ConflictResolution, useDefaults bool) string {
	var b strings.Builder
	b.WriteString("INSERT")
	b.WriteString(cr.clause())
	b.WriteString(" INTO ")
	b.WriteString(quote(m.TableName))
	if useDefaults || len(m.editable) == 0 {
		b.WriteString(" DEFAULT VALUES")
		return b.String()
	}
	b.WriteString(" (")
	for i, c := range m.editable {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(c.Name))
	}
	b.WriteString(") VALUES (")
	for i := range m.editable {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteByte(')')
	return b.String()
}

// InsertArgs returns the values bound by InsertSQL for obj.
func (m *TableMapping) InsertArgs(obj any) []any {
	args := make([]any, len(m.editable))
	for i, c := range m.editable {
		args[i] = c.field(obj)
	}
	return args
}

// UpdateSQL returns an UPDATE of every non-key column of obj, addressed by
// its primary key, and the arguments to bind: the non-key values in column
// order followed by the key values in key order.
func (m *TableMapping) UpdateSQL(obj any) (string, []any, error) {
	if !m.HasPrimaryKey() {
		return "", nil, m.missingKey("update")
	}
	args := make([]any, 0, len(m.Columns))
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(quote(m.TableName))
	b.WriteString(" SET ")
	n := 0
	for _, c := range m.Columns {
		if c.PrimaryKey {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(c.Name))
		b.WriteString("=?")
		args = append(args, c.field(obj))
		n++
	}
	if n == 0 {
		return "", nil, newError(KindInvalidMapping, "update", m.TableName, "every column is part of the primary key")
	}
	b.WriteString(" WHERE ")
	b.WriteString(keyPredicate(m.PrimaryKeys))
	return b.String(), m.appendKeys(args, obj), nil
}

// UpdateColumnSQL returns an UPDATE of a single column of the row with the
// given key values.
func (m *TableMapping) UpdateColumnSQL(column string, value any, keys []any) (string, []any, error) {
	if !m.HasPrimaryKey() {
		return "", nil, m.missingKey("update")
	}
	c := m.FindColumn(column)
	if c == nil {
		return "", nil, newError(KindInvalidMapping, "update", m.TableName, "no column %q", column)
	}
	if len(keys) != len(m.PrimaryKeys) {
		return "", nil, m.keyCount("update", len(keys))
	}
	query := "UPDATE " + quote(m.TableName) + " SET " + quote(c.Name) + "=? WHERE " + keyPredicate(m.PrimaryKeys)
	return query, append([]any{value}, keys...), nil
}

// UpdateAllColumnSQL returns an UPDATE setting one column on every row.
func (m *TableMapping) UpdateAllColumnSQL(column string, value any) (string, []any, error) {
	c := m.FindColumn(column)
	if c == nil {
		return "", nil, newError(KindInvalidMapping, "update", m.TableName, "no column %q", column)
	}
	return "UPDATE " + quote(m.TableName) + " SET " + quote(c.Name) + "=?", []any{value}, nil
}

// DeleteSQL returns a DELETE of obj addressed by its primary key.
func (m *TableMapping) DeleteSQL(obj any) (string, []any, error) {
	if !m.HasPrimaryKey() {
		return "", nil, m.missingKey("delete")
	}
	query := "DELETE FROM " + quote(m.TableName) + " WHERE " + keyPredicate(m.PrimaryKeys)
	return query, m.appendKeys(nil, obj), nil
}

// SelectByKeySQL returns the statement selecting one row by primary key.
func (m *TableMapping) SelectByKeySQL() (string, error) {
	if !m.HasPrimaryKey() {
		return "", m.missingKey("select")
	}
	return m.selectByKey, nil
}

// AddColumnSQL returns the migration statement adding c to the table.
// It refuses non-nullable columns without a default, which existing rows
// could not satisfy.
func (m *TableMapping) AddColumnSQL(c *Column) (string, error) {
	if !c.Nullable && c.Default == "" {
		return "", newError(KindNonNullableMigration, "migrate", m.TableName,
			"cannot add non-nullable column %q without a default", c.Name)
	}
	return "ALTER TABLE " + quote(m.TableName) + " ADD COLUMN " + c.definition() + ";", nil
}

// CreateIndexSQL returns the CREATE INDEX IF NOT EXISTS statement for idx.
func (m *TableMapping) CreateIndexSQL(idx Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX IF NOT EXISTS ")
	b.WriteString(quote(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(quote(m.TableName))
	b.WriteString(" (")
	for i, ic := range idx.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(ic.Name))
		if ic.Desc {
			b.WriteString(" DESC")
		}
	}
	b.WriteByte(')')
	return b.String()
}

// MigrationDiff returns the mapped columns missing from existing, in
// mapping order.
func MigrationDiff(existing []string, m *TableMapping) []*Column {
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[strings.ToLower(name)] = true
	}
	var missing []*Column
	for _, c := range m.Columns {
		if !have[strings.ToLower(c.Name)] {
			missing = append(missing, c)
		}
	}
	return missing
}

func (m *TableMapping) appendKeys(args []any, obj any) []any {
	for _, c := range m.PrimaryKeys {
		args = append(args, c.field(obj))
	}
	return args
}

func (m *TableMapping) missingKey(op string) error {
	return newError(KindMissingPrimaryKey, op, m.TableName, "%s has no primary key", m.typeName)
}

func (m *TableMapping) keyCount(op string, got int) error {
	return newError(KindInvalidMapping, op, m.TableName, "want %d key values, got %d", len(m.PrimaryKeys), got)
}

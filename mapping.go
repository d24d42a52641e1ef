package liteorm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// TableMapping is the table and column metadata derived from a record type's
// Schema. A TableMapping is immutable once constructed.
type TableMapping struct {
	TableName    string
	OldTableName string
	// Columns in declaration order.
	Columns []*Column
	// PrimaryKeys in declaration order; empty when the table has no key.
	PrimaryKeys []*Column
	// AutoIncrement is the engine-assigned key column, or nil.
	AutoIncrement *Column
	Indexes       []Index

	typeName    string
	byName      map[string]*Column
	editable    []*Column
	selectByKey string
	newRecord   func() any
}

// Column is one mapped column.
type Column struct {
	Name          string
	Type          Affinity
	Nullable      bool
	Default       string
	PrimaryKey    bool
	AutoIncrement bool
	MaxLength     int

	field func(obj any) any
}

// Ref returns a pointer to the field of obj backing this column.
// obj must be a pointer to the mapping's record type.
func (c *Column) Ref(obj any) any { return c.field(obj) }

// DeriveMapping builds the TableMapping for record type T.
// Repeated calls for the same type yield structurally equal mappings.
func DeriveMapping[T any, P Record[T]]() (*TableMapping, error) {
	var zero T
	schema := P(&zero).Schema()

	cols := make([]columnSpec, len(schema.Columns))
	for i, def := range schema.Columns {
		cols[i] = columnSpec{
			Column: Column{
				Name:          def.Name,
				Type:          def.Type,
				Nullable:      def.Nullable,
				Default:       def.Default,
				PrimaryKey:    def.PrimaryKey,
				AutoIncrement: def.AutoIncrement,
				MaxLength:     def.MaxLength,
			},
			hasField: def.Field != nil,
		}
		if field := def.Field; field != nil {
			cols[i].field = func(obj any) any { return field(obj.(*T)) }
		}
	}

	return buildMapping(typeNameOf[T](), schema.Table, schema.OldTable, cols, schema.Indexes,
		func() any { return P(new(T)) })
}

type columnSpec struct {
	Column
	hasField bool
}

func buildMapping(typeName, table, oldTable string, specs []columnSpec, indexes []Index, newRecord func() any) (*TableMapping, error) {
	invalid := func(format string, args ...any) (*TableMapping, error) {
		return nil, newError(KindInvalidMapping, "derive mapping", table, format, args...)
	}

	if err := checkIdent(table); err != nil {
		return invalid("table name: %v", err)
	}
	if oldTable != "" {
		if err := checkIdent(oldTable); err != nil {
			return invalid("old table name: %v", err)
		}
	}
	if len(specs) == 0 {
		return invalid("%s declares no columns", typeName)
	}

	m := &TableMapping{
		TableName:    table,
		OldTableName: oldTable,
		Columns:      make([]*Column, 0, len(specs)),
		Indexes:      indexes,
		typeName:     typeName,
		byName:       make(map[string]*Column, len(specs)),
		newRecord:    newRecord,
	}

	for i := range specs {
		c := &specs[i].Column
		if err := checkIdent(c.Name); err != nil {
			return invalid("column %d: %v", i, err)
		}
		key := strings.ToLower(c.Name)
		if _, dup := m.byName[key]; dup {
			return invalid("duplicate column %q", c.Name)
		}
		if c.Type < Integer || c.Type > JSON {
			return invalid("column %q has no affinity", c.Name)
		}
		if !specs[i].hasField {
			return invalid("column %q has no field accessor", c.Name)
		}
		if c.AutoIncrement {
			if m.AutoIncrement != nil {
				return invalid("columns %q and %q are both auto-increment", m.AutoIncrement.Name, c.Name)
			}
			if !c.PrimaryKey || c.Type != Integer {
				return invalid("auto-increment column %q must be an integer primary key", c.Name)
			}
			m.AutoIncrement = c
		}
		m.byName[key] = c
		m.Columns = append(m.Columns, c)
		if c.PrimaryKey {
			m.PrimaryKeys = append(m.PrimaryKeys, c)
		}
		if !c.AutoIncrement {
			m.editable = append(m.editable, c)
		}
	}

	if m.AutoIncrement != nil && len(m.PrimaryKeys) > 1 {
		return invalid("auto-increment column %q cannot be part of a composite primary key", m.AutoIncrement.Name)
	}

	for _, idx := range indexes {
		if err := checkIdent(idx.Name); err != nil {
			return invalid("index name: %v", err)
		}
		if len(idx.Columns) == 0 {
			return invalid("index %q has no columns", idx.Name)
		}
		for _, ic := range idx.Columns {
			if m.FindColumn(ic.Name) == nil {
				return invalid("index %q references unknown column %q", idx.Name, ic.Name)
			}
		}
	}

	if len(m.PrimaryKeys) > 0 {
		m.selectByKey = "SELECT * FROM " + quote(m.TableName) + " WHERE " + keyPredicate(m.PrimaryKeys)
	}
	return m, nil
}

// FindColumn returns the column with the given name, or nil.
// Names compare case-insensitively, as SQLite identifiers do.
func (m *TableMapping) FindColumn(name string) *Column {
	return m.byName[strings.ToLower(name)]
}

// EditableColumns returns every column whose value the caller supplies on
// insert, which is all of them except the auto-increment column.
func (m *TableMapping) EditableColumns() []*Column {
	return m.editable
}

// HasPrimaryKey reports whether rows can be addressed by key.
func (m *TableMapping) HasPrimaryKey() bool { return len(m.PrimaryKeys) > 0 }

// TypeName is the fully qualified name of the mapped record type.
func (m *TableMapping) TypeName() string { return m.typeName }

func typeNameOf[T any]() string {
	t := reflect.TypeFor[T]()
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// checkIdent rejects names that cannot be written inside [ ] quotes.
func checkIdent(name string) error {
	if name == "" {
		return errors.New("empty identifier")
	}
	if strings.ContainsAny(name, "[]\x00") {
		return fmt.Errorf("identifier %q contains a bracket or NUL", name)
	}
	return nil
}

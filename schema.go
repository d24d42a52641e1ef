package liteorm

import "strconv"

// Affinity is the storage class a column is declared with.
type Affinity int

const (
	Integer Affinity = iota + 1
	Real
	Text
	Blob
	// DateTime columns hold time.Time values stored as text.
	DateTime
	// GUID columns hold uuid.UUID values stored as 36 character text.
	GUID
	// Boolean columns hold bool values stored as 0 or 1.
	Boolean
	// JSON columns hold JSON documents stored as text; see [JSONField].
	JSON
)

func (a Affinity) String() string {
	switch a {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Text:
		return "text"
	case Blob:
		return "blob"
	case DateTime:
		return "datetime"
	case GUID:
		return "guid"
	case Boolean:
		return "boolean"
	case JSON:
		return "json"
	}
	return "invalid"
}

// declType returns the type name used in column definitions.
// Datetime columns must be declared "datetime" for the driver to scan them
// back into time.Time.
func (a Affinity) declType(maxLength int) string {
	switch a {
	case Integer, Boolean:
		return "integer"
	case Real:
		return "real"
	case Text:
		if maxLength > 0 {
			return "varchar(" + strconv.Itoa(maxLength) + ")"
		}
		return "text"
	case Blob:
		return "blob"
	case DateTime:
		return "datetime"
	case GUID:
		return "varchar(36)"
	case JSON:
		return "text"
	}
	return ""
}

// Record is the constraint satisfied by pointers to mapped record types.
//
//	type Item struct {
//		ID   int64
//		Name string
//	}
//
//	func (*Item) Schema() liteorm.Schema[Item] {
//		return liteorm.Schema[Item]{
//			Table: "items",
//			Columns: []liteorm.ColumnDef[Item]{
//				{Name: "ID", Type: liteorm.Integer, PrimaryKey: true, AutoIncrement: true,
//					Field: func(it *Item) any { return &it.ID }},
//				{Name: "Name", Type: liteorm.Text,
//					Field: func(it *Item) any { return &it.Name }},
//			},
//		}
//	}
type Record[T any] interface {
	*T
	Schema() Schema[T]
}

// Schema describes how a record type T maps onto a table.
// Schema must not depend on the receiver's field values.
type Schema[T any] struct {
	Table string
	// OldTable, when set, names the table this one used to be called.
	// CreateTable renames OldTable to Table.
	OldTable string
	Columns  []ColumnDef[T]
	Indexes  []Index
}

// ColumnDef describes one column of a record type T.
type ColumnDef[T any] struct {
	Name     string
	Type     Affinity
	Nullable bool
	// Default is a literal SQL fragment placed verbatim after DEFAULT.
	// Text literals must carry their own quotes, e.g. "'none'".
	Default       string
	PrimaryKey    bool
	AutoIncrement bool
	MaxLength     int
	// Field returns a pointer to the struct field backing the column.
	// The pointer is bound as the statement argument on writes and used as
	// the scan destination on reads, so it must be a type database/sql can
	// convert from and to: *int64, *string, *[]byte, *time.Time, *bool,
	// *uuid.UUID, a pointer to a pointer for nullable columns, or any
	// sql.Scanner that is also a driver.Valuer.
	Field func(*T) any
}

// Index describes an index created alongside the table.
type Index struct {
	Name    string
	Unique  bool
	Columns []IndexColumn
}

// IndexColumn is one column of an Index.
type IndexColumn struct {
	Name string
	Desc bool
}

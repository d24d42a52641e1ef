package liteorm

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	CID     int64
	Name    string
	Type    string
	NotNull bool
	// Default is the column's DEFAULT expression, or nil.
	Default *string
	// PK is the column's 1-based position in the primary key, or 0.
	PK int64
}

func (*ColumnInfo) Schema() Schema[ColumnInfo] {
	return Schema[ColumnInfo]{
		Table: "pragma_table_info",
		Columns: []ColumnDef[ColumnInfo]{
			{Name: "cid", Type: Integer, Field: func(c *ColumnInfo) any { return &c.CID }},
			{Name: "name", Type: Text, Field: func(c *ColumnInfo) any { return &c.Name }},
			{Name: "type", Type: Text, Field: func(c *ColumnInfo) any { return &c.Type }},
			{Name: "notnull", Type: Boolean, Field: func(c *ColumnInfo) any { return &c.NotNull }},
			{Name: "dflt_value", Type: Text, Nullable: true, Field: func(c *ColumnInfo) any { return &c.Default }},
			{Name: "pk", Type: Integer, Field: func(c *ColumnInfo) any { return &c.PK }},
		},
	}
}

// IndexListEntry is one row of PRAGMA index_list.
type IndexListEntry struct {
	Seq    int64
	Name   string
	Unique bool
	// Origin is "c" for CREATE INDEX, "u" for UNIQUE constraints and "pk"
	// for primary keys.
	Origin  string
	Partial bool
}

func (*IndexListEntry) Schema() Schema[IndexListEntry] {
	return Schema[IndexListEntry]{
		Table: "pragma_index_list",
		Columns: []ColumnDef[IndexListEntry]{
			{Name: "seq", Type: Integer, Field: func(e *IndexListEntry) any { return &e.Seq }},
			{Name: "name", Type: Text, Field: func(e *IndexListEntry) any { return &e.Name }},
			{Name: "unique", Type: Boolean, Field: func(e *IndexListEntry) any { return &e.Unique }},
			{Name: "origin", Type: Text, Field: func(e *IndexListEntry) any { return &e.Origin }},
			{Name: "partial", Type: Boolean, Field: func(e *IndexListEntry) any { return &e.Partial }},
		},
	}
}

// IndexInfoEntry is one row of PRAGMA index_info.
type IndexInfoEntry struct {
	SeqNo int64
	CID   int64
	// Name is nil for expression columns.
	Name *string
}

func (*IndexInfoEntry) Schema() Schema[IndexInfoEntry] {
	return Schema[IndexInfoEntry]{
		Table: "pragma_index_info",
		Columns: []ColumnDef[IndexInfoEntry]{
			{Name: "seqno", Type: Integer, Field: func(e *IndexInfoEntry) any { return &e.SeqNo }},
			{Name: "cid", Type: Integer, Field: func(e *IndexInfoEntry) any { return &e.CID }},
			{Name: "name", Type: Text, Nullable: true, Field: func(e *IndexInfoEntry) any { return &e.Name }},
		},
	}
}

// MasterEntry is one row of sqlite_master.
type MasterEntry struct {
	Type     string
	Name     string
	TblName  string
	RootPage int64
	SQL      *string
}

func (*MasterEntry) Schema() Schema[MasterEntry] {
	return Schema[MasterEntry]{
		Table: "sqlite_master",
		Columns: []ColumnDef[MasterEntry]{
			{Name: "type", Type: Text, Field: func(e *MasterEntry) any { return &e.Type }},
			{Name: "name", Type: Text, Field: func(e *MasterEntry) any { return &e.Name }},
			{Name: "tbl_name", Type: Text, Field: func(e *MasterEntry) any { return &e.TblName }},
			{Name: "rootpage", Type: Integer, Field: func(e *MasterEntry) any { return &e.RootPage }},
			{Name: "sql", Type: Text, Nullable: true, Field: func(e *MasterEntry) any { return &e.SQL }},
		},
	}
}

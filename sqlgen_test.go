package liteorm

import (
	"errors"
	"reflect"
	"testing"
)

func mustMapping[T any, P Record[T]](t *testing.T) *TableMapping {
	t.Helper()
	m, err := DeriveMapping[T, P]()
	if err != nil {
		t.Fatalf("DeriveMapping: %v", err)
	}
	return m
}

func TestDeriveMapping(t *testing.T) {
	m := mustMapping[Product](t)

	if m.TableName != "Product" {
		t.Errorf("TableName = %q, want Product", m.TableName)
	}
	if len(m.Columns) != 4 {
		t.Fatalf("got %d columns, want 4", len(m.Columns))
	}
	if m.AutoIncrement == nil || m.AutoIncrement.Name != "Id" {
		t.Errorf("AutoIncrement = %v, want Id", m.AutoIncrement)
	}
	if len(m.EditableColumns()) != 3 {
		t.Errorf("got %d editable columns, want 3", len(m.EditableColumns()))
	}
	if c := m.FindColumn("totalsales"); c == nil || c.Name != "TotalSales" {
		t.Errorf("FindColumn is not case-insensitive: %v", c)
	}
	if m.TypeName() != "github.com/jordanwade90/liteorm.Product" {
		t.Errorf("TypeName = %q", m.TypeName())
	}

	again := mustMapping[Product](t)
	if again.CreateSQL() != m.CreateSQL() {
		t.Error("repeated derivation produced different DDL")
	}
}

type badSchema struct {
	A, B int64
}

var badSchemas = map[string]Schema[badSchema]{
	"empty table name": {
		Columns: []ColumnDef[badSchema]{{Name: "A", Type: Integer, Field: func(b *badSchema) any { return &b.A }}},
	},
	"bracket in name": {
		Table:   "a]b",
		Columns: []ColumnDef[badSchema]{{Name: "A", Type: Integer, Field: func(b *badSchema) any { return &b.A }}},
	},
	"no columns": {Table: "t"},
	"duplicate column": {
		Table: "t",
		Columns: []ColumnDef[badSchema]{
			{Name: "A", Type: Integer, Field: func(b *badSchema) any { return &b.A }},
			{Name: "a", Type: Integer, Field: func(b *badSchema) any { return &b.B }},
		},
	},
	"missing field": {
		Table:   "t",
		Columns: []ColumnDef[badSchema]{{Name: "A", Type: Integer}},
	},
	"missing affinity": {
		Table:   "t",
		Columns: []ColumnDef[badSchema]{{Name: "A", Field: func(b *badSchema) any { return &b.A }}},
	},
	"text auto-increment": {
		Table:   "t",
		Columns: []ColumnDef[badSchema]{{Name: "A", Type: Text, PrimaryKey: true, AutoIncrement: true, Field: func(b *badSchema) any { return &b.A }}},
	},
	"auto-increment in composite key": {
		Table: "t",
		Columns: []ColumnDef[badSchema]{
			{Name: "A", Type: Integer, PrimaryKey: true, AutoIncrement: true, Field: func(b *badSchema) any { return &b.A }},
			{Name: "B", Type: Integer, PrimaryKey: true, Field: func(b *badSchema) any { return &b.B }},
		},
	},
	"index on unknown column": {
		Table:   "t",
		Columns: []ColumnDef[badSchema]{{Name: "A", Type: Integer, Field: func(b *badSchema) any { return &b.A }}},
		Indexes: []Index{{Name: "ix", Columns: []IndexColumn{{Name: "C"}}}},
	},
}

// currentBad selects which entry of badSchemas (*badSchema).Schema returns.
var currentBad string

func (*badSchema) Schema() Schema[badSchema] { return badSchemas[currentBad] }

func TestDeriveMappingRejectsInvalidSchemas(t *testing.T) {
	for name := range badSchemas {
		t.Run(name, func(t *testing.T) {
			currentBad = name
			_, err := DeriveMapping[badSchema]()
			if !errors.Is(err, ErrInvalidMapping) {
				t.Fatalf("err = %v, want ErrInvalidMapping", err)
			}
		})
	}
}

func TestCreateSQL(t *testing.T) {
	tests := []struct {
		name string
		m    *TableMapping
		want string
	}{
		{
			"auto-increment key inline",
			mustMapping[Product](t),
			"CREATE TABLE IF NOT EXISTS [Product] ([Id] INTEGER PRIMARY KEY AUTOINCREMENT, [Name] varchar(64) NOT NULL, [Price] real NOT NULL, [TotalSales] integer NOT NULL DEFAULT 0)",
		},
		{
			"composite key trailing",
			mustMapping[Stock](t),
			"CREATE TABLE IF NOT EXISTS [Stock] ([Store] integer NOT NULL, [Product] integer NOT NULL, [Quantity] integer NOT NULL, PRIMARY KEY ([Store], [Product]))",
		},
		{
			"affinities and single key",
			mustMapping[Customer](t),
			"CREATE TABLE IF NOT EXISTS [Customer] ([Id] varchar(36) NOT NULL, [Email] text NOT NULL, [Joined] datetime NOT NULL, [Active] integer NOT NULL DEFAULT 1, [Tags] text, [Nickname] text, PRIMARY KEY ([Id]))",
		},
		{
			"no key",
			mustMapping[LogLine](t),
			"CREATE TABLE IF NOT EXISTS [LogLine] ([Message] text NOT NULL DEFAULT 'none')",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.CreateSQL(); got != tt.want {
				t.Errorf("CreateSQL()\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestInsertSQL(t *testing.T) {
	m := mustMapping[Product](t)
	tests := []struct {
		cr          ConflictResolution
		useDefaults bool
		want        string
	}{
		{ConflictDefault, false, "INSERT INTO [Product] ([Name], [Price], [TotalSales]) VALUES (?, ?, ?)"},
		{ConflictReplace, false, "INSERT OR REPLACE INTO [Product] ([Name], [Price], [TotalSales]) VALUES (?, ?, ?)"},
		{ConflictIgnore, false, "INSERT OR IGNORE INTO [Product] ([Name], [Price], [TotalSales]) VALUES (?, ?, ?)"},
		{ConflictRollback, true, "INSERT OR ROLLBACK INTO [Product] DEFAULT VALUES"},
		{ConflictAbort, true, "INSERT OR ABORT INTO [Product] DEFAULT VALUES"},
		{ConflictFail, true, "INSERT OR FAIL INTO [Product] DEFAULT VALUES"},
	}
	for _, tt := range tests {
		if got := m.InsertSQL(tt.cr, tt.useDefaults); got != tt.want {
			t.Errorf("InsertSQL(%v, %v) = %q, want %q", tt.cr, tt.useDefaults, got, tt.want)
		}
	}

	p := &Product{Name: "pen", Price: 1.5, TotalSales: 3}
	args := m.InsertArgs(p)
	if len(args) != 3 || args[0] != &p.Name || args[1] != &p.Price || args[2] != &p.TotalSales {
		t.Errorf("InsertArgs does not bind the field pointers in column order: %v", args)
	}
}

func TestUpdateAndDeleteSQL(t *testing.T) {
	m := mustMapping[Stock](t)
	st := &Stock{Store: 1, Product: 2, Quantity: 3}

	query, args, err := m.UpdateSQL(st)
	if err != nil {
		t.Fatal(err)
	}
	if want := "UPDATE [Stock] SET [Quantity]=? WHERE [Store]=? AND [Product]=?"; query != want {
		t.Errorf("UpdateSQL = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{&st.Quantity, &st.Store, &st.Product}) {
		t.Errorf("UpdateSQL args = %v", args)
	}

	query, args, err = m.DeleteSQL(st)
	if err != nil {
		t.Fatal(err)
	}
	if want := "DELETE FROM [Stock] WHERE [Store]=? AND [Product]=?"; query != want {
		t.Errorf("DeleteSQL = %q, want %q", query, want)
	}
	if len(args) != 2 {
		t.Errorf("DeleteSQL args = %v", args)
	}

	query, args, err = m.UpdateColumnSQL("quantity", 9, []any{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if want := "UPDATE [Stock] SET [Quantity]=? WHERE [Store]=? AND [Product]=?"; query != want {
		t.Errorf("UpdateColumnSQL = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{9, 1, 2}) {
		t.Errorf("UpdateColumnSQL args = %v", args)
	}
	if _, _, err := m.UpdateColumnSQL("Quantity", 9, []any{1}); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("wrong key count: err = %v", err)
	}

	if q, _ := m.SelectByKeySQL(); q != "SELECT * FROM [Stock] WHERE [Store]=? AND [Product]=?" {
		t.Errorf("SelectByKeySQL = %q", q)
	}
}

func TestKeyedSQLWithoutPrimaryKey(t *testing.T) {
	m := mustMapping[LogLine](t)
	if _, _, err := m.UpdateSQL(&LogLine{}); !errors.Is(err, ErrMissingPrimaryKey) {
		t.Errorf("UpdateSQL: err = %v, want ErrMissingPrimaryKey", err)
	}
	if _, _, err := m.DeleteSQL(&LogLine{}); !errors.Is(err, ErrMissingPrimaryKey) {
		t.Errorf("DeleteSQL: err = %v, want ErrMissingPrimaryKey", err)
	}
	if _, err := m.SelectByKeySQL(); !errors.Is(err, ErrMissingPrimaryKey) {
		t.Errorf("SelectByKeySQL: err = %v, want ErrMissingPrimaryKey", err)
	}
	if got, want := m.InsertSQL(ConflictDefault, true), "INSERT INTO [LogLine] DEFAULT VALUES"; got != want {
		t.Errorf("InsertSQL = %q, want %q", got, want)
	}
}

func TestMigrationSQL(t *testing.T) {
	m := mustMapping[ProductV2](t)

	missing := MigrationDiff([]string{"id", "NAME", "Price", "TotalSales"}, m)
	if len(missing) != 2 || missing[0].Name != "Description" || missing[1].Name != "Stock" {
		t.Fatalf("MigrationDiff = %v", missing)
	}

	got, err := m.AddColumnSQL(missing[0])
	if err != nil {
		t.Fatal(err)
	}
	if want := "ALTER TABLE [Product] ADD COLUMN [Description] text;"; got != want {
		t.Errorf("AddColumnSQL = %q, want %q", got, want)
	}
	got, err = m.AddColumnSQL(missing[1])
	if err != nil {
		t.Fatal(err)
	}
	if want := "ALTER TABLE [Product] ADD COLUMN [Stock] integer NOT NULL DEFAULT 10;"; got != want {
		t.Errorf("AddColumnSQL = %q, want %q", got, want)
	}

	bad := mustMapping[ProductBad](t)
	if _, err := bad.AddColumnSQL(bad.FindColumn("SKU")); !errors.Is(err, ErrNonNullableMigration) {
		t.Errorf("AddColumnSQL(SKU): err = %v, want ErrNonNullableMigration", err)
	}
}

func TestIndexAndRenameSQL(t *testing.T) {
	m := mustMapping[Customer](t)
	want := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS [UX_Customer_Email] ON [Customer] ([Email])",
		"CREATE INDEX IF NOT EXISTS [IX_Customer_Joined] ON [Customer] ([Joined] DESC)",
	}
	for i, idx := range m.Indexes {
		if got := m.CreateIndexSQL(idx); got != want[i] {
			t.Errorf("CreateIndexSQL = %q, want %q", got, want[i])
		}
	}

	g := mustMapping[Goods](t)
	if got, want := g.RenameSQL(), "ALTER TABLE [Product] RENAME TO [Goods]"; got != want {
		t.Errorf("RenameSQL = %q, want %q", got, want)
	}
	if got, want := g.DropSQL(), "DROP TABLE IF EXISTS [Goods]"; got != want {
		t.Errorf("DropSQL = %q, want %q", got, want)
	}
	if got, want := g.ClearSQL(), "DELETE FROM [Goods]"; got != want {
		t.Errorf("ClearSQL = %q, want %q", got, want)
	}
}

func TestPragmaArg(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"Customer", "Customer"},
		{"_tmp2", "_tmp2"},
		{"my table", "[my table]"},
		{"2fast", "[2fast]"},
		{"", "[]"},
	} {
		if got := pragmaArg(tt.in); got != tt.want {
			t.Errorf("pragmaArg(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package liteorm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Product has an engine-assigned key.
type Product struct {
	ID         int64
	Name       string
	Price      float64
	TotalSales int64
}

func (*Product) Schema() Schema[Product] {
	return Schema[Product]{
		Table: "Product",
		Columns: []ColumnDef[Product]{
			{Name: "Id", Type: Integer, PrimaryKey: true, AutoIncrement: true, Field: func(p *Product) any { return &p.ID }},
			{Name: "Name", Type: Text, MaxLength: 64, Field: func(p *Product) any { return &p.Name }},
			{Name: "Price", Type: Real, Field: func(p *Product) any { return &p.Price }},
			{Name: "TotalSales", Type: Integer, Default: "0", Field: func(p *Product) any { return &p.TotalSales }},
		},
		Indexes: []Index{
			{Name: "IX_Product_Name", Columns: []IndexColumn{{Name: "Name"}}},
		},
	}
}

// ProductV2 is Product with two columns added later.
type ProductV2 struct {
	Product
	Description *string
	Stock       int64
}

func (*ProductV2) Schema() Schema[ProductV2] {
	return Schema[ProductV2]{
		Table: "Product",
		Columns: []ColumnDef[ProductV2]{
			{Name: "Id", Type: Integer, PrimaryKey: true, AutoIncrement: true, Field: func(p *ProductV2) any { return &p.ID }},
			{Name: "Name", Type: Text, MaxLength: 64, Field: func(p *ProductV2) any { return &p.Name }},
			{Name: "Price", Type: Real, Field: func(p *ProductV2) any { return &p.Price }},
			{Name: "TotalSales", Type: Integer, Default: "0", Field: func(p *ProductV2) any { return &p.TotalSales }},
			{Name: "Description", Type: Text, Nullable: true, Field: func(p *ProductV2) any { return &p.Description }},
			{Name: "Stock", Type: Integer, Default: "10", Field: func(p *ProductV2) any { return &p.Stock }},
		},
	}
}

// ProductBad adds a NOT NULL column that existing rows cannot fill.
type ProductBad struct {
	Product
	Description *string
	SKU         string
}

func (*ProductBad) Schema() Schema[ProductBad] {
	return Schema[ProductBad]{
		Table: "Product",
		Columns: []ColumnDef[ProductBad]{
			{Name: "Id", Type: Integer, PrimaryKey: true, AutoIncrement: true, Field: func(p *ProductBad) any { return &p.ID }},
			{Name: "Name", Type: Text, Field: func(p *ProductBad) any { return &p.Name }},
			{Name: "Price", Type: Real, Field: func(p *ProductBad) any { return &p.Price }},
			{Name: "Description", Type: Text, Nullable: true, Field: func(p *ProductBad) any { return &p.Description }},
			{Name: "SKU", Type: Text, Field: func(p *ProductBad) any { return &p.SKU }},
		},
	}
}

// Goods is Product under its new name.
type Goods struct {
	Product
}

func (*Goods) Schema() Schema[Goods] {
	return Schema[Goods]{
		Table:    "Goods",
		OldTable: "Product",
		Columns: []ColumnDef[Goods]{
			{Name: "Id", Type: Integer, PrimaryKey: true, AutoIncrement: true, Field: func(g *Goods) any { return &g.ID }},
			{Name: "Name", Type: Text, Field: func(g *Goods) any { return &g.Name }},
			{Name: "Price", Type: Real, Field: func(g *Goods) any { return &g.Price }},
			{Name: "TotalSales", Type: Integer, Default: "0", Field: func(g *Goods) any { return &g.TotalSales }},
		},
	}
}

// Customer has a caller-assigned key and richer column types.
type Customer struct {
	ID       uuid.UUID
	Email    string
	Joined   time.Time
	Active   bool
	Tags     JSONField[[]string]
	Nickname *string
}

func (*Customer) Schema() Schema[Customer] {
	return Schema[Customer]{
		Table: "Customer",
		Columns: []ColumnDef[Customer]{
			{Name: "Id", Type: GUID, PrimaryKey: true, Field: func(c *Customer) any { return &c.ID }},
			{Name: "Email", Type: Text, Field: func(c *Customer) any { return &c.Email }},
			{Name: "Joined", Type: DateTime, Field: func(c *Customer) any { return &c.Joined }},
			{Name: "Active", Type: Boolean, Default: "1", Field: func(c *Customer) any { return &c.Active }},
			{Name: "Tags", Type: JSON, Nullable: true, Field: func(c *Customer) any { return &c.Tags }},
			{Name: "Nickname", Type: Text, Nullable: true, Field: func(c *Customer) any { return &c.Nickname }},
		},
		Indexes: []Index{
			{Name: "UX_Customer_Email", Unique: true, Columns: []IndexColumn{{Name: "Email"}}},
			{Name: "IX_Customer_Joined", Columns: []IndexColumn{{Name: "Joined", Desc: true}}},
		},
	}
}

// Stock has a composite key.
type Stock struct {
	Store    int64
	Product  int64
	Quantity int64
}

func (*Stock) Schema() Schema[Stock] {
	return Schema[Stock]{
		Table: "Stock",
		Columns: []ColumnDef[Stock]{
			{Name: "Store", Type: Integer, PrimaryKey: true, Field: func(s *Stock) any { return &s.Store }},
			{Name: "Product", Type: Integer, PrimaryKey: true, Field: func(s *Stock) any { return &s.Product }},
			{Name: "Quantity", Type: Integer, Field: func(s *Stock) any { return &s.Quantity }},
		},
	}
}

// LogLine has no key.
type LogLine struct {
	Message string
}

func (*LogLine) Schema() Schema[LogLine] {
	return Schema[LogLine]{
		Table: "LogLine",
		Columns: []ColumnDef[LogLine]{
			{Name: "Message", Type: Text, Default: "'none'", Field: func(l *LogLine) any { return &l.Message }},
		},
	}
}

func openSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTable[T any, P Record[T]](t *testing.T, s *Session) {
	t.Helper()
	if _, err := CreateTable[T, P](context.Background(), s, true); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
}

func countRows(t *testing.T, s *Session, table string) int64 {
	t.Helper()
	n, err := Scalar[int64](context.Background(), s, "SELECT count(*) FROM ["+table+"]")
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

package liteorm

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDeferredQueryReExecutes(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s := openSession(t, WithTracerProvider(tp))
	createTable[Product](t, s)

	seq := DeferredQuery[Product](ctx, s, "SELECT * FROM [Product] ORDER BY [Id]")
	queries := func() int {
		n := 0
		for _, span := range rec.Ended() {
			if span.Name() == "liteorm.query" {
				n++
			}
		}
		return n
	}
	before := queries()

	n := 0
	for p, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		t.Errorf("unexpected row %+v", p)
		n++
	}
	if n != 0 {
		t.Fatalf("empty table yielded %d rows", n)
	}

	if _, err := Insert(ctx, s, &Product{Name: "pen"}, ConflictDefault); err != nil {
		t.Fatal(err)
	}
	for p, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		if p.Name != "pen" || p.ID != 1 {
			t.Errorf("row = %+v", p)
		}
		n++
	}
	if n != 1 {
		t.Errorf("second range yielded %d rows, want 1", n)
	}
	if got := queries() - before; got != 2 {
		t.Errorf("ran the query %d times, want 2", got)
	}
}

func TestDeferredQueryEarlyBreakClosesRows(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	createTable[Stock](t, s)
	for i := range int64(5) {
		insertStock(t, s, i+1)
	}

	for st, err := range DeferredQuery[Stock](ctx, s, "SELECT * FROM Stock") {
		if err != nil {
			t.Fatal(err)
		}
		if st.Product != 1 {
			t.Errorf("first row = %+v", st)
		}
		break
	}
	// An open statement would hold the table and make DROP fail.
	if _, err := DropTable[Stock](ctx, s); err != nil {
		t.Fatalf("DropTable after early break: %v", err)
	}
}

func TestDeferredQueryFuncHook(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	createTable[Stock](t, s)
	for i := range int64(3) {
		insertStock(t, s, i+1)
	}

	var seen []int64
	hook := func(st *Stock) { seen = append(seen, st.Product) }
	total := 0
	for st, err := range DeferredQueryFunc(ctx, s, hook, "SELECT Product, 'extra' AS Unmapped FROM Stock ORDER BY Product") {
		if err != nil {
			t.Fatal(err)
		}
		total++
		if len(seen) != total || seen[total-1] != st.Product {
			t.Errorf("hook did not run before yielding row %d", total)
		}
		if st.Store != 0 || st.Quantity != 0 {
			t.Errorf("unselected columns were filled: %+v", st)
		}
	}
	if total != 3 {
		t.Errorf("got %d rows, want 3", total)
	}
}

func TestDeferredQueryReportsErrors(t *testing.T) {
	s := openSession(t)
	var errs int
	for p, err := range DeferredQuery[Product](context.Background(), s, "SELECT * FROM Missing") {
		if err == nil || p != nil {
			t.Errorf("got %v, %v; want nil and an error", p, err)
		}
		errs++
	}
	if errs != 1 {
		t.Errorf("got %d errors, want 1", errs)
	}
	if _, err := Query[Product](context.Background(), s, "SELECT * FROM Missing"); err == nil {
		t.Error("Query on a missing table succeeded")
	}
}

func TestCatalogQueries(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	createTable[Customer](t, s)

	cols, err := s.TableInfo(ctx, "Customer")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 6 {
		t.Fatalf("TableInfo returned %d columns", len(cols))
	}
	id := cols[0]
	if id.Name != "Id" || id.Type != "varchar(36)" || !id.NotNull || id.PK != 1 {
		t.Errorf("Id column = %+v", id)
	}
	active := cols[3]
	if active.Default == nil || *active.Default != "1" {
		t.Errorf("Active default = %v", active.Default)
	}

	idx, err := s.IndexList(ctx, "Customer")
	if err != nil {
		t.Fatal(err)
	}
	unique := 0
	for _, e := range idx {
		if e.Unique {
			unique++
		}
	}
	// The primary key, and UX_Customer_Email.
	if unique != 2 {
		t.Errorf("IndexList = %+v, want 2 unique indexes", idx)
	}
}

func TestGetListCompositeKey(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	createTable[Stock](t, s)
	insertStock(t, s, 1)
	insertStock(t, s, 2)

	list, err := GetList[Stock](ctx, s, int64(1), int64(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Store != 1 || list[0].Product != 2 || list[0].Quantity != 1 {
		t.Errorf("GetList = %+v", list)
	}
	if list, err := GetList[Stock](ctx, s, int64(2), int64(2)); err != nil || len(list) != 0 {
		t.Errorf("GetList(missing) = %+v, %v", list, err)
	}
	if _, err := GetList[LogLine](ctx, s); !errors.Is(err, ErrMissingPrimaryKey) {
		t.Errorf("GetList without a key: err = %v, want ErrMissingPrimaryKey", err)
	}
}

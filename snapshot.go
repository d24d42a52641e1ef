package liteorm

import (
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jordanwade90/liteorm/internal/dbfile"
	"github.com/jordanwade90/liteorm/internal/record"
)

// snapshotQueue is how many encoded rows a table writer may fall behind
// the reader.
const snapshotQueue = 256

type snapshotTable struct {
	name    string
	ddl     string
	selectQ string
	columns int
}

// Snapshot writes a new database file to w holding a copy of the rows of
// the named tables, or of every user table when none are named. Tables are
// copied with their declared column types but without constraints or
// indexes. The session reads the rows; each table's pages are written by a
// goroutine of its own.
func (s *Session) Snapshot(ctx context.Context, w io.WriterAt, tables ...string) error {
	if err := s.checkOpen("snapshot"); err != nil {
		return err
	}
	if len(tables) == 0 {
		names, err := s.TableNames(ctx)
		if err != nil {
			return err
		}
		tables = names
	}

	plans := make([]snapshotTable, 0, len(tables))
	for _, name := range tables {
		p, err := s.planSnapshot(ctx, name)
		if err != nil {
			return err
		}
		plans = append(plans, p)
	}

	file := dbfile.Create(w)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range plans {
		rows := make(chan []byte, snapshotQueue)
		tbl := file.CreateTable()
		g.Go(func() error {
			stream := tbl.OpenStream()
			for row := range rows {
				if _, err := stream.WriteRow(row); err != nil {
					return wrapEngine("snapshot", p.name, err)
				}
			}
			if err := stream.Close(); err != nil {
				return wrapEngine("snapshot", p.name, err)
			}
			return wrapEngine("snapshot", p.name, tbl.Close(p.name, p.ddl))
		})
		err := s.readSnapshotRows(gctx, p, rows)
		close(rows)
		if err != nil {
			// A failed writer cancels gctx; its error is the one to report.
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return wrapEngine("snapshot", "", err)
	}
	s.logger.InfoContext(ctx, "liteorm snapshot written", "tables", len(plans))
	return nil
}

func (s *Session) planSnapshot(ctx context.Context, table string) (snapshotTable, error) {
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return snapshotTable{}, err
	}
	if !exists {
		return snapshotTable{}, newError(KindNotFound, "snapshot", table, "no such table")
	}
	info, err := s.TableInfo(ctx, table)
	if err != nil {
		return snapshotTable{}, err
	}

	var ddl, sel strings.Builder
	ddl.WriteString("CREATE TABLE " + quote(table) + " (")
	sel.WriteString("SELECT ")
	for i, c := range info {
		if i > 0 {
			ddl.WriteString(", ")
			sel.WriteString(", ")
		}
		ddl.WriteString(quote(c.Name))
		if c.Type != "" {
			ddl.WriteString(" " + c.Type)
		}
		sel.WriteString(quote(c.Name))
	}
	ddl.WriteString(")")
	sel.WriteString(" FROM " + quote(table))

	return snapshotTable{
		name:    table,
		ddl:     ddl.String(),
		selectQ: sel.String(),
		columns: len(info),
	}, nil
}

// readSnapshotRows encodes every row of p and sends it to out.
func (s *Session) readSnapshotRows(ctx context.Context, p snapshotTable, out chan<- []byte) (err error) {
	s.traceCommand(ctx, p.selectQ, nil)
	ctx, span := s.startSpan(ctx, "liteorm.query", p.selectQ)
	defer func() { endSpan(span, err) }()

	rows, err := s.conn.QueryContext(ctx, p.selectQ)
	if err != nil {
		return wrapEngine("snapshot", p.name, err)
	}
	defer rows.Close()

	vals := make([]any, p.columns)
	dest := make([]any, p.columns)
	for i := range vals {
		dest[i] = &vals[i]
	}
	var rec record.Record
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return wrapEngine("snapshot", p.name, err)
		}
		rec.Reset()
		for _, v := range vals {
			if err := rec.AppendValue(v); err != nil {
				return wrapEngine("snapshot", p.name, err)
			}
		}
		select {
		case out <- rec.AppendTo(nil):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return wrapEngine("snapshot", p.name, rows.Err())
}

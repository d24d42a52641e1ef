// Package dbfile writes a SQLite database file directly, without going
// through the engine.
//
// Rows are written as a stream of table B-tree cells. Each Table hands out
// Streams; a Stream fills leaf pages on its own and may run on its own
// goroutine. Closing a Table builds its interior pages, and closing the File
// writes the header page and the sqlite_schema table pointing at every
// table's root page.
//
// The layout follows https://sqlite.org/fileformat2.html. Rowids are
// assigned by the writer in blocks tied to leaf page numbers, which is what
// lets independent streams be merged into one valid B-tree.
package dbfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jordanwade90/liteorm/internal/pagebuf"
	"github.com/jordanwade90/liteorm/internal/record"
	"github.com/jordanwade90/liteorm/internal/svarint"
)

// PageSize is the page size of every file written.
const PageSize = 65536

var (
	ErrClosed       = errors.New("dbfile: closed")
	ErrSchemaTooBig = errors.New("dbfile: sqlite_schema does not fit on the first page")
	ErrTooLarge     = errors.New("dbfile: database too large")
)

type schemaEntry struct {
	typ       string
	name      string
	tableName string
	rootPage  pagebuf.PageNumber
	sql       string
}

// File is a database file being written.
type File struct {
	w        io.WriterAt
	nextPage atomic.Uint32

	// schemaLock protects schema and closed.
	schemaLock sync.Mutex
	schema     []schemaEntry
	closed     bool
}

// Create prepares to write a database to w. Page 1 is written last, by Close.
func Create(w io.WriterAt) *File {
	f := &File{w: w}
	f.nextPage.Store(2)
	return f
}

// Close writes the header page holding the sqlite_schema table. Every Table
// must be closed first. Close does not close the underlying writer.
func (f *File) Close() error {
	f.schemaLock.Lock()
	defer f.schemaLock.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.closed = true

	hdr := pagebuf.NewDatabaseHeader(PageSize)
	for i, entry := range f.schema {
		cell, err := f.schemaCell(int64(i+1), entry)
		if err != nil {
			return err
		}
		if !hdr.Add(cell) {
			return fmt.Errorf("%w: %d tables", ErrSchemaTooBig, len(f.schema))
		}
	}

	pageCount := f.nextPage.Load() - 1
	_, err := f.w.WriteAt(hdr.Finish(pageCount), 0)
	return err
}

// CreateTable starts a table. Its schema entry is recorded when the Table
// is closed.
func (f *File) CreateTable() *Table {
	return &Table{
		file:         f,
		interiorPage: make([]byte, PageSize),
	}
}

func (f *File) addTable(name, sql string, rootPage pagebuf.PageNumber) error {
	f.schemaLock.Lock()
	defer f.schemaLock.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.schema = append(f.schema, schemaEntry{
		typ:       "table",
		name:      name,
		tableName: name,
		rootPage:  rootPage,
		sql:       sql,
	})
	return nil
}

func (f *File) allocPage() (pagebuf.PageNumber, error) {
	for {
		p := f.nextPage.Add(1) - 1
		if p == 0 {
			return 0, ErrTooLarge
		}
		if !isLockBytePage(p) {
			return pagebuf.PageNumber(p), nil
		}
	}
}

// isLockBytePage reports whether the page holds the byte range the engine
// uses for file locks, which must never carry data.
func isLockBytePage(pageNumber uint32) bool {
	return int64(pageNumber-1)*PageSize == 1<<30
}

func (f *File) writePage(pageNumber pagebuf.PageNumber, page []byte) error {
	_, err := f.w.WriteAt(page, int64(pageNumber-1)*PageSize)
	return err
}

// spill moves the part of payload that does not fit on a leaf page to a
// chain of overflow pages. It returns the first overflow page, or 0, and
// the part kept on the leaf.
func (f *File) spill(payload []byte) (overflow pagebuf.PageNumber, local []byte, err error) {
	onPage := leafPayloadOnPage(PageSize, len(payload))
	if len(payload) <= onPage {
		return 0, payload, nil
	}

	rest := payload[onPage:]
	local = payload[:onPage]
	if overflow, err = f.allocPage(); err != nil {
		return 0, nil, err
	}

	page := make([]byte, PageSize)
	this, next := overflow, pagebuf.PageNumber(0)
	for len(rest) > PageSize-4 {
		if next, err = f.allocPage(); err != nil {
			return 0, nil, err
		}
		binary.BigEndian.PutUint32(page, uint32(next))
		copy(page[4:], rest)
		rest = rest[PageSize-4:]
		if err = f.writePage(this, page); err != nil {
			return 0, nil, err
		}
		this = next
	}

	binary.BigEndian.PutUint32(page, 0)
	copy(page[4:], rest)
	clear(page[4+len(rest):])
	if err = f.writePage(this, page); err != nil {
		return 0, nil, err
	}
	return overflow, local, nil
}

func (f *File) schemaCell(rowid int64, entry schemaEntry) ([]byte, error) {
	var rec record.Record
	rec.AppendString(entry.typ)
	rec.AppendString(entry.name)
	rec.AppendString(entry.tableName)
	rec.AppendInt(int64(entry.rootPage))
	rec.AppendString(entry.sql)

	payload := rec.AppendTo(nil)
	overflow, local, err := f.spill(payload)
	if err != nil {
		return nil, err
	}
	return appendCell(nil, len(payload), rowid, local, overflow), nil
}

func appendCell(buf []byte, payloadLen int, rowid int64, local []byte, overflow pagebuf.PageNumber) []byte {
	buf = svarint.Append(buf, uint64(payloadLen))
	buf = svarint.Append(buf, uint64(rowid))
	buf = append(buf, local...)
	if overflow != 0 {
		buf = binary.BigEndian.AppendUint32(buf, uint32(overflow))
	}
	return buf
}

// leafPayloadOnPage returns how many payload bytes stay on a table leaf
// page, per the "alternative description" of the overflow calculation in
// https://sqlite.org/fileformat2.html.
func leafPayloadOnPage(pageSize int, payloadSize int) int {
	X := pageSize - 35
	M := ((pageSize - 12) * 32 / 255) - 23
	K := M + ((payloadSize - M) % (pageSize - 4))
	switch {
	case payloadSize <= X:
		return payloadSize
	case K <= X:
		return K
	default:
		return M
	}
}

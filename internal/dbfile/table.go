package dbfile

import (
	"sync"

	"github.com/jordanwade90/liteorm/internal/pagebuf"
)

const (
	minCellSize = 4
	// rowsPerBlock is the most cells a leaf page can hold. Each leaf page
	// owns the block of rowids starting at its page number times this.
	rowsPerBlock = PageSize / minCellSize
)

// Table is a table B-tree being written.
type Table struct {
	file *File

	// interiorLock protects interior and closed.
	interiorLock sync.Mutex
	// interior holds one level of the tree per element, leaves' parents first.
	interior     []*pagebuf.TableInterior
	interiorPage []byte
	closed       bool
}

// OpenStream returns a new Stream writing rows to the table.
func (t *Table) OpenStream() *Stream {
	return &Stream{
		table: t,
		leaf:  pagebuf.NewTableLeaf(PageSize),
		cell:  make([]byte, 0, PageSize),
	}
}

// Close builds the interior pages of the tree and records the table in the
// file's schema under name with the CREATE TABLE statement sql. Every
// Stream must be closed first.
func (t *Table) Close(name, sql string) error {
	t.interiorLock.Lock()
	defer t.interiorLock.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.closed = true

	for i := 0; i < len(t.interior); i++ {
		node := t.interior[i]
		if node.Length() == 1 {
			root, _ := node.Remove()
			return t.file.addTable(name, sql, root)
		}

		for {
			pageNum, err := t.file.allocPage()
			if err != nil {
				return err
			}
			rightmost, empty := node.Put(t.interiorPage)
			if err := t.file.writePage(pageNum, t.interiorPage); err != nil {
				return err
			}

			if i+1 == len(t.interior) {
				if empty {
					// That was the root.
					return t.file.addTable(name, sql, pageNum)
				}
				t.interior = append(t.interior, pagebuf.NewTableInterior(PageSize))
			}
			t.interior[i+1].Add(pageNum, rightmost)

			if empty {
				break
			}
		}
	}

	// No rows were written: the root is an empty leaf.
	root, err := t.file.allocPage()
	if err != nil {
		return err
	}
	if err := t.file.writePage(root, pagebuf.NewTableLeaf(PageSize).Finish()); err != nil {
		return err
	}
	return t.file.addTable(name, sql, root)
}

// allocBlock allocates a leaf page and returns the first rowid of its block.
func (t *Table) allocBlock() (int64, error) {
	t.interiorLock.Lock()
	defer t.interiorLock.Unlock()

	if t.closed {
		return 0, ErrClosed
	}
	if len(t.interior) == 0 {
		t.interior = append(t.interior, pagebuf.NewTableInterior(PageSize))
	}

	pageNum, err := t.file.allocPage()
	if err != nil {
		return 0, err
	}
	first := int64(pageNum) * rowsPerBlock
	rightmost := first + rowsPerBlock - 1

	for i := range t.interior {
		if t.interior[i].Add(pageNum, rightmost) {
			return first, nil
		}

		if pageNum, err = t.file.allocPage(); err != nil {
			return 0, err
		}
		rightmost, _ = t.interior[i].Put(t.interiorPage)
		if err := t.file.writePage(pageNum, t.interiorPage); err != nil {
			return 0, err
		}
	}

	t.interior = append(t.interior, pagebuf.NewTableInterior(PageSize))
	t.interior[len(t.interior)-1].Add(pageNum, rightmost)
	return first, nil
}

func (t *Table) writeLeaf(lastRowid int64, page []byte) error {
	return t.file.writePage(pagebuf.PageNumber(lastRowid/rowsPerBlock), page)
}

// Stream writes rows into one Table. A Stream is not safe for concurrent
// use; open one per goroutine.
type Stream struct {
	table *Table
	leaf  *pagebuf.TableLeaf
	// cell is reused to format each cell.
	cell []byte
	// nextRowid is the rowid of the next row, or 0 when the current leaf
	// is full or not yet allocated.
	nextRowid int64
}

// Close writes the stream's last leaf page.
func (s *Stream) Close() error {
	return s.Flush()
}

// Flush writes the current leaf page. The next row starts a new page.
func (s *Stream) Flush() error {
	if s.leaf.IsEmpty() {
		return nil
	}
	err := s.table.writeLeaf(s.nextRowid-1, s.leaf.Finish())
	s.nextRowid = 0
	return err
}

// WriteRow writes one row whose payload is an encoded record, and returns
// the rowid it was given. WriteRow does not retain row.
func (s *Stream) WriteRow(row []byte) (rowid int64, err error) {
	if s.nextRowid == 0 {
		if s.nextRowid, err = s.table.allocBlock(); err != nil {
			return 0, err
		}
	}

	overflow, local, err := s.table.file.spill(row)
	if err != nil {
		return 0, err
	}

	for {
		rowid = s.nextRowid
		s.cell = appendCell(s.cell[:0], len(row), rowid, local, overflow)
		if s.leaf.Add(s.cell) {
			s.nextRowid++
			return rowid, nil
		}
		if err = s.Flush(); err != nil {
			return 0, err
		}
		if s.nextRowid, err = s.table.allocBlock(); err != nil {
			return 0, err
		}
	}
}

// Package pagebuf lays out individual pages of a SQLite database file:
// table B-tree leaf and interior pages, and page 1 with the file header.
package pagebuf

import (
	"encoding/binary"

	"github.com/jordanwade90/liteorm/internal/svarint"
)

const (
	DatabaseHeaderSize      = 100
	TableLeafHeaderSize     = 8
	TableInteriorHeaderSize = 12
)

// Page types, from the first byte of a B-tree page header.
const (
	pageTableInterior = 5
	pageTableLeaf     = 13
)

// PageNumber annotates uint32s that are actually page numbers.
type PageNumber uint32

// leafPage fills cells from the end of the page towards its header.
type leafPage struct {
	page         []byte
	contentStart int
	numCells     int
	headerStart  int
}

func (p *leafPage) add(cell []byte) bool {
	// contentStart moves down as cells are added.
	contentStart := p.contentStart - len(cell)
	contentEnd := p.headerStart + TableLeafHeaderSize + 2*p.numCells
	if contentStart < contentEnd+2 {
		return false
	}

	binary.BigEndian.PutUint16(p.page[contentEnd:], uint16(contentStart))
	copy(p.page[contentStart:], cell)
	p.contentStart = contentStart
	p.numCells++
	return true
}

// finish writes the leaf page header and resets the page for reuse.
func (p *leafPage) finish() []byte {
	h := p.page[p.headerStart:]
	h[0] = pageTableLeaf
	h[1], h[2] = 0, 0
	binary.BigEndian.PutUint16(h[3:], uint16(p.numCells))
	// A cell content area starting at 65536 is stored as 0.
	binary.BigEndian.PutUint16(h[5:], uint16(p.contentStart))
	h[7] = 0

	p.contentStart = len(p.page)
	p.numCells = 0
	return p.page
}

// TableLeaf helps write table B-tree leaf pages.
type TableLeaf struct{ leafPage }

// NewTableLeaf returns an empty TableLeaf.
func NewTableLeaf(pageSize int) *TableLeaf {
	return &TableLeaf{leafPage{
		page:         make([]byte, pageSize),
		contentStart: pageSize,
	}}
}

// Add tries to add a cell, returning false if it does not fit.
func (p *TableLeaf) Add(cell []byte) bool { return p.add(cell) }

// Finish returns the finished page and empties the TableLeaf for reuse.
// The returned slice is the TableLeaf's own buffer; do not modify it.
func (p *TableLeaf) Finish() []byte { return p.finish() }

func (p *TableLeaf) IsEmpty() bool { return p.numCells == 0 }

// TableInterior buffers the children of one level of a table B-tree and
// cuts them into interior pages.
type TableInterior struct {
	pageNumbers  []PageNumber
	rowids       []int64
	pageSize     int
	contentStart int
	excessCells  int
}

// NewTableInterior returns an empty TableInterior.
func NewTableInterior(pageSize int) *TableInterior {
	return &TableInterior{
		pageSize:     pageSize,
		contentStart: pageSize,
	}
}

func (ti *TableInterior) updateBookkeeping(numCells int, cellLen int) {
	if ti.excessCells > 0 {
		ti.excessCells++
		return
	}
	contentStart := ti.contentStart - cellLen
	contentEnd := TableInteriorHeaderSize + 2*numCells + 2
	if contentStart < contentEnd {
		ti.excessCells = 1
	} else {
		ti.contentStart = contentStart
	}
}

// Add adds a child page whose largest rowid is rowid.
// When Add returns false a full page of children is buffered; call Put to
// write it out before adding more.
func (ti *TableInterior) Add(pageNumber PageNumber, rowid int64) (ok bool) {
	ti.pageNumbers = append(ti.pageNumbers, pageNumber)
	ti.rowids = append(ti.rowids, rowid)
	ti.updateBookkeeping(len(ti.pageNumbers), 4+svarint.Length(rowid))
	return ti.excessCells < 2
}

// Length returns the number of buffered children, including excess ones.
func (ti *TableInterior) Length() int {
	return len(ti.pageNumbers)
}

// Put writes one interior page to p and drops the children it used.
//
// While the table is still being written, call Put once each time Add
// returns false and ignore empty. When finishing the table, call Put until
// empty is true.
func (ti *TableInterior) Put(p []byte) (rightmostRowid int64, empty bool) {
	if len(ti.pageNumbers) < 2 {
		panic("pagebuf: interior page needs at least two children")
	}

	contentStart := len(p)
	numCells := 0
	limit := len(ti.pageNumbers) - ti.excessCells
	if ti.excessCells == 1 {
		limit--
	}

	for numCells < limit-1 {
		contentStart -= 4 + svarint.Length(ti.rowids[numCells])
		contentEnd := TableInteriorHeaderSize + 2*numCells + 2
		if contentStart <= contentEnd {
			panic("pagebuf: interior page bookkeeping out of step")
		}

		binary.BigEndian.PutUint16(p[contentEnd-2:], uint16(contentStart))
		binary.BigEndian.PutUint32(p[contentStart:], uint32(ti.pageNumbers[numCells]))
		svarint.Put(p[contentStart+4:], ti.rowids[numCells])
		numCells++
	}
	rightmostRowid = ti.rowids[numCells]

	p[0] = pageTableInterior
	p[1], p[2] = 0, 0
	binary.BigEndian.PutUint16(p[3:], uint16(numCells))
	binary.BigEndian.PutUint16(p[5:], uint16(contentStart))
	p[7] = 0
	binary.BigEndian.PutUint32(p[8:], uint32(ti.pageNumbers[numCells]))

	ti.pageNumbers = append(ti.pageNumbers[:0], ti.pageNumbers[numCells+1:]...)
	ti.rowids = append(ti.rowids[:0], ti.rowids[numCells+1:]...)
	ti.contentStart = ti.pageSize
	ti.excessCells = 0
	for i := range ti.pageNumbers {
		ti.updateBookkeeping(i, 4+svarint.Length(ti.rowids[i]))
	}

	return rightmostRowid, len(ti.pageNumbers) == 0
}

// Remove removes the most recently added child.
func (ti *TableInterior) Remove() (pageNumber PageNumber, rowid int64) {
	if len(ti.pageNumbers) == 0 {
		panic("pagebuf: remove from empty interior page")
	}

	last := len(ti.pageNumbers) - 1
	pageNumber, rowid = ti.pageNumbers[last], ti.rowids[last]
	ti.pageNumbers = ti.pageNumbers[:last]
	ti.rowids = ti.rowids[:last]

	if ti.excessCells > 0 {
		ti.excessCells--
	} else {
		ti.contentStart += 4 + svarint.Length(rowid)
	}
	return pageNumber, rowid
}

// DatabaseHeader helps write page 1: the file header followed by the
// sqlite_schema table, which must fit on this single leaf page.
type DatabaseHeader struct{ leafPage }

// NewDatabaseHeader returns an empty DatabaseHeader.
func NewDatabaseHeader(pageSize int) *DatabaseHeader {
	return &DatabaseHeader{leafPage{
		page:         make([]byte, pageSize),
		contentStart: pageSize,
		headerStart:  DatabaseHeaderSize,
	}}
}

// Add tries to add a sqlite_schema cell, returning false if it does not fit.
func (p *DatabaseHeader) Add(cell []byte) bool { return p.add(cell) }

// Finish returns page 1 for a file of pageCount pages and empties the
// DatabaseHeader. The returned slice is its own buffer; do not modify it.
func (p *DatabaseHeader) Finish(pageCount uint32) []byte {
	h := p.page
	copy(h, "SQLite format 3\000")
	if len(h) == 65536 {
		binary.BigEndian.PutUint16(h[16:], 1)
	} else {
		binary.BigEndian.PutUint16(h[16:], uint16(len(h)))
	}
	h[18], h[19] = 1, 1 // legacy rollback journal for reads and writes
	h[20] = 0           // reserved bytes per page
	h[21], h[22], h[23] = 64, 32, 32
	// The page count is trusted only when the change counter matches the
	// version-valid-for number.
	binary.BigEndian.PutUint32(h[24:], 1)
	binary.BigEndian.PutUint32(h[28:], pageCount)
	binary.BigEndian.PutUint32(h[40:], 1) // schema cookie
	binary.BigEndian.PutUint32(h[44:], 4) // schema format
	binary.BigEndian.PutUint32(h[48:], uint32(2048000/len(h)))
	binary.BigEndian.PutUint32(h[56:], 1) // UTF-8
	binary.BigEndian.PutUint32(h[92:], 1)
	binary.BigEndian.PutUint32(h[96:], 3003000)
	return p.finish()
}

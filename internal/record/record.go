// Package record encodes rows in the SQLite record format: a header of
// serial types followed by the column values.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jordanwade90/liteorm/internal/svarint"
)

// TimeFormat is how time values are stored, matching what the database
// driver writes for datetime columns.
const TimeFormat = "2006-01-02 15:04:05.999999999-07:00"

// Serial types with a fixed meaning.
const (
	serialNull  = 0
	serialFloat = 7
	serialZero  = 8
	serialOne   = 9
)

func headerLen(l int) int {
	return l + headerLenLen(l)
}

func headerLenLen(l int) int {
	// The header length counts its own varint, which may push it past a
	// length boundary.
	return svarint.Length(l + svarint.Length(l))
}

// A Record accumulates the columns of one row. The zero value is empty and
// ready to use.
type Record struct {
	header  []byte
	payload []byte
	columns int
}

// Len returns the number of columns appended.
func (r *Record) Len() int { return r.columns }

func (r *Record) AppendNull() {
	r.header = append(r.header, serialNull)
	r.columns++
}

func (r *Record) AppendBool(b bool) {
	if b {
		r.AppendInt(1)
	} else {
		r.AppendInt(0)
	}
}

// AppendInt stores i in the smallest integer serial type that holds it.
func (r *Record) AppendInt(i int64) {
	r.columns++
	var size int
	switch {
	case i == 0:
		r.header = append(r.header, serialZero)
		return
	case i == 1:
		r.header = append(r.header, serialOne)
		return
	case i >= -0x80 && i <= 0x7f:
		r.header = append(r.header, 1)
		size = 1
	case i >= -0x8000 && i <= 0x7fff:
		r.header = append(r.header, 2)
		size = 2
	case i >= -0x80_0000 && i <= 0x7f_ffff:
		r.header = append(r.header, 3)
		size = 3
	case i >= -0x8000_0000 && i <= 0x7fff_ffff:
		r.header = append(r.header, 4)
		size = 4
	case i >= -0x8000_0000_0000 && i <= 0x7fff_ffff_ffff:
		r.header = append(r.header, 5)
		size = 6
	default:
		r.header = append(r.header, 6)
		size = 8
	}
	for shift := 8 * (size - 1); shift >= 0; shift -= 8 {
		r.payload = append(r.payload, byte(i>>shift))
	}
}

// AppendFloat stores f as an 8-byte IEEE float, keeping integral values
// typed as real.
func (r *Record) AppendFloat(f float64) {
	r.header = append(r.header, serialFloat)
	r.payload = binary.BigEndian.AppendUint64(r.payload, math.Float64bits(f))
	r.columns++
}

func (r *Record) AppendString(s string) {
	r.header = svarint.Append(r.header, 2*len(s)+13)
	r.payload = append(r.payload, s...)
	r.columns++
}

func (r *Record) AppendBlob(b []byte) {
	r.header = svarint.Append(r.header, 2*len(b)+12)
	r.payload = append(r.payload, b...)
	r.columns++
}

func (r *Record) AppendTime(t time.Time) {
	r.AppendString(t.Format(TimeFormat))
}

// AppendJSON stores the JSON encoding of v as text.
func (r *Record) AppendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.header = svarint.Append(r.header, 2*len(b)+13)
	r.payload = append(r.payload, b...)
	r.columns++
	return nil
}

// AppendValue stores a value as read from a database/sql driver. Types a
// driver does not produce are stored as JSON text.
func (r *Record) AppendValue(v any) error {
	switch v := v.(type) {
	case nil:
		r.AppendNull()
	case int64:
		r.AppendInt(v)
	case int:
		r.AppendInt(int64(v))
	case float64:
		r.AppendFloat(v)
	case bool:
		r.AppendBool(v)
	case string:
		r.AppendString(v)
	case []byte:
		r.AppendBlob(v)
	case time.Time:
		r.AppendTime(v)
	case uuid.UUID:
		r.AppendString(v.String())
	case fmt.Stringer:
		r.AppendString(v.String())
	default:
		return r.AppendJSON(v)
	}
	return nil
}

// AppendTo appends the encoded record to p.
func (r *Record) AppendTo(p []byte) []byte {
	p = svarint.Append(p, headerLen(len(r.header)))
	p = append(p, r.header...)
	p = append(p, r.payload...)
	return p
}

// Reset empties the record, keeping its buffers.
func (r *Record) Reset() {
	r.header = r.header[:0]
	r.payload = r.payload[:0]
	r.columns = 0
}

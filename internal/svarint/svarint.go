// Package svarint encodes the big-endian variable-length integers used by
// the SQLite file format: seven bits per byte with the high bit set on
// every byte but the last, except that a ninth byte carries a full eight
// bits.
package svarint

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// MaxLen is the longest encoding of a 64-bit value.
const MaxLen = 9

// Length returns the number of bytes Append would add for x.
func Length[T constraints.Integer](x T) int {
	xl := 64 - bits.LeadingZeros64(uint64(x))
	if xl > 56 {
		return MaxLen
	}
	if xl == 0 {
		return 1
	}
	return (xl + 6) / 7
}

// Append appends the encoding of x to buf.
func Append[T constraints.Integer](buf []byte, x T) []byte {
	var tmp [MaxLen]byte
	n := Put(tmp[:], x)
	return append(buf, tmp[:n]...)
}

// Put writes the encoding of x to the start of buf and returns the number
// of bytes written. buf must have room for Length(x) bytes.
func Put[T constraints.Integer](buf []byte, x T) int {
	v := uint64(x)
	n := Length(x)
	if n == MaxLen {
		buf[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			buf[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return MaxLen
	}
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(v & 0x7f)
		if i != n-1 {
			buf[i] |= 0x80
		}
		v >>= 7
	}
	return n
}

// Read decodes a varint from the start of buf, returning the value and the
// number of bytes consumed, or 0 bytes if buf is truncated.
func Read(buf []byte) (uint64, int) {
	var v uint64
	for i := 0; i < MaxLen && i < len(buf); i++ {
		if i == MaxLen-1 {
			return v<<8 | uint64(buf[i]), MaxLen
		}
		v = v<<7 | uint64(buf[i]&0x7f)
		if buf[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	return 0, 0
}

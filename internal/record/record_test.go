package record

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAppendTo(t *testing.T) {
	var r Record
	r.AppendInt(0)
	r.AppendInt(1)
	r.AppendNull()
	r.AppendString("hi")
	r.AppendBlob([]byte{0xde, 0xad})

	want := []byte{
		6,       // header length
		8, 9, 0, // zero, one, null
		17,      // text of length 2
		16,      // blob of length 2
		'h', 'i', 0xde, 0xad,
	}
	if got := r.AppendTo(nil); !bytes.Equal(got, want) {
		t.Errorf("AppendTo = % x, want % x", got, want)
	}
	if r.Len() != 5 {
		t.Errorf("Len = %d, want 5", r.Len())
	}
}

func TestAppendInt(t *testing.T) {
	for _, tt := range []struct {
		i       int64
		serial  byte
		payload []byte
	}{
		{2, 1, []byte{0x02}},
		{-1, 1, []byte{0xff}},
		{-129, 2, []byte{0xff, 0x7f}},
		{0x12345, 3, []byte{0x01, 0x23, 0x45}},
		{-0x8000_0000, 4, []byte{0x80, 0x00, 0x00, 0x00}},
		{1 << 40, 5, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{1 << 62, 6, []byte{0x40, 0, 0, 0, 0, 0, 0, 0}},
	} {
		var r Record
		r.AppendInt(tt.i)
		want := append([]byte{2, tt.serial}, tt.payload...)
		if got := r.AppendTo(nil); !bytes.Equal(got, want) {
			t.Errorf("AppendInt(%d) = % x, want % x", tt.i, got, want)
		}
	}
}

func TestAppendFloat(t *testing.T) {
	var r Record
	r.AppendFloat(1)
	want := []byte{2, 7, 0x3f, 0xf0, 0, 0, 0, 0, 0, 0}
	if got := r.AppendTo(nil); !bytes.Equal(got, want) {
		t.Errorf("AppendFloat(1) = % x, want % x", got, want)
	}
}

func TestHeaderLengthBoundary(t *testing.T) {
	// 126 serial types fit a one-byte header length; 127 need two bytes,
	// and the header length counts them.
	for _, tt := range []struct {
		columns int
		prefix  []byte
	}{
		{126, []byte{127}},
		{127, []byte{0x81, 0x01}},
	} {
		var r Record
		for range tt.columns {
			r.AppendNull()
		}
		got := r.AppendTo(nil)
		if !bytes.HasPrefix(got, tt.prefix) || len(got) != len(tt.prefix)+tt.columns {
			t.Errorf("%d columns: record starts % x and is %d bytes", tt.columns, got[:2], len(got))
		}
	}
}

func TestAppendValue(t *testing.T) {
	joined := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	var r Record
	for _, v := range []any{nil, int64(300), 2.5, true, "x", []byte("y"), joined, id, map[string]int{"a": 1}} {
		if err := r.AppendValue(v); err != nil {
			t.Fatalf("AppendValue(%v): %v", v, err)
		}
	}
	got := r.AppendTo(nil)

	for _, text := range []string{"2024-03-01 12:30:00+00:00", id.String(), `{"a":1}`} {
		if !bytes.Contains(got, []byte(text)) {
			t.Errorf("record does not contain %q", text)
		}
	}
	// true is stored as the constant one.
	if got[4] != 9 {
		t.Errorf("bool serial type = %d, want 9", got[4])
	}

	if err := r.AppendValue(make(chan int)); err == nil {
		t.Error("AppendValue(chan) succeeded")
	}
}

func TestReset(t *testing.T) {
	var r Record
	r.AppendString(strings.Repeat("a", 100))
	r.Reset()
	r.AppendInt(1)
	if got := r.AppendTo(nil); !bytes.Equal(got, []byte{2, 9}) {
		t.Errorf("after Reset = % x", got)
	}
}

// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package rowcodec encodes tuples of typed column values into memcomparable
// byte rows: byte-lexicographic comparison of two encoded rows reproduces
// the SQL ordering declared by their sort fields (ascending/descending,
// nulls-first/last), across every column in the tuple.
package rowcodec

import (
	"errors"
	"fmt"

	"github.com/nxsql/qcore/batch"
)

// ErrUnsupportedType is returned when a sort field names a type the
// encoder does not know how to produce comparable bytes for.
var ErrUnsupportedType = errors.New("rowcodec: unsupported type for row encoding")

// SortField names one column's contribution to a multi-column sort key.
type SortField struct {
	Type       batch.Type
	Descending bool
	NullsFirst bool
}

// fieldMarkers returns the (null, present) marker bytes for a field so that
// byte comparison of the marker alone reproduces the field's NullsFirst
// ordering: nulls sort before values when NullsFirst, after otherwise.
func fieldMarkers(nullsFirst bool) (null, present byte) {
	if nullsFirst {
		return 0x00, 0x01
	}
	return 0x01, 0x00
}

// Rows holds one encoded byte row per source row, produced by Encode and
// consumed by the heap and group index. Rows is reusable: Reset clears it
// for a fresh Encode call, reusing backing storage.
type Rows struct {
	fields []SortField
	// offsets[i]:offsets[i+1] bounds row i within buf.
	offsets []int32
	buf     []byte
}

// Len returns the number of encoded rows.
func (r *Rows) Len() int { return len(r.offsets) - 1 }

// Row returns the i-th encoded row as an immutable byte slice.
func (r *Rows) Row(i int) []byte {
	return r.buf[r.offsets[i]:r.offsets[i+1]]
}

// Reset empties r while retaining its backing buffers for reuse across
// Encode calls, mirroring the original implementation's reused scratch-row
// buffer (see DESIGN.md).
func (r *Rows) Reset() {
	r.offsets = r.offsets[:0]
	if len(r.offsets) == 0 {
		r.offsets = append(r.offsets, 0)
	}
	r.buf = r.buf[:0]
}

// Encoder produces Rows for a fixed list of sort fields.
type Encoder struct {
	fields []SortField
}

// NewEncoder builds an Encoder for the given sort fields, in column order.
func NewEncoder(fields []SortField) *Encoder {
	cp := make([]SortField, len(fields))
	copy(cp, fields)
	return &Encoder{fields: cp}
}

// Encode writes one encoded row per row of cols (which must have equal
// Len() and correspond 1:1 to the encoder's sort fields, in order) into
// out, replacing any rows out held while reusing its buffers, and
// allocates out if nil. It returns the (possibly newly allocated) Rows.
func (e *Encoder) Encode(cols []batch.Column, out *Rows) (*Rows, error) {
	if len(cols) != len(e.fields) {
		return nil, fmt.Errorf("rowcodec: %d columns, encoder has %d sort fields", len(cols), len(e.fields))
	}
	if out == nil {
		out = &Rows{fields: e.fields}
	}
	out.offsets = append(out.offsets[:0], 0)
	out.buf = out.buf[:0]
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	for _, c := range cols {
		if c.Len() != n {
			return nil, fmt.Errorf("rowcodec: column length mismatch: %d vs %d", c.Len(), n)
		}
	}
	for row := 0; row < n; row++ {
		for fi, c := range cols {
			f := e.fields[fi]
			if err := e.encodeField(&out.buf, f, c, row); err != nil {
				return nil, err
			}
		}
		out.offsets = append(out.offsets, int32(len(out.buf)))
	}
	return out, nil
}

// encodeField appends this field's marker byte and, for non-null values, its
// encoded payload to *buf. Descending inverts only the payload, never the
// marker: NULLS FIRST/LAST is a property of the field independent of sort
// direction, so a descending field still places nulls where NullsFirst says
// regardless of how its values are ordered.
func (e *Encoder) encodeField(buf *[]byte, f SortField, c batch.Column, row int) error {
	nullMarker, presentMarker := fieldMarkers(f.NullsFirst)
	if c.IsNull(row) {
		*buf = append(*buf, nullMarker)
		return nil
	}
	*buf = append(*buf, presentMarker)
	valStart := len(*buf)
	if err := encodeValue(buf, f.Type, c, row); err != nil {
		return err
	}
	if f.Descending {
		invertBytes((*buf)[valStart:])
	}
	return nil
}

func invertBytes(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}

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

package rowcodec

import (
	"encoding/binary"
	"math"

	"github.com/nxsql/qcore/batch"
)

// Decode inverts Encode, reconstructing one typed column per sort field
// from the rows previously produced for those same fields. It is the
// row encoder's half of spec.md's round-trip contract; most callers in
// this repo reconstruct group keys directly from groupvalues.Builder
// instead (which never loses type information to begin with), but Decode
// is exercised by the row-encoder property tests and is available to any
// caller that only has encoded rows.
func (e *Encoder) Decode(rows *Rows) ([]batch.Column, error) {
	n := rows.Len()
	cols := make([]batch.Column, len(e.fields))
	for fi, f := range e.fields {
		switch f.Type {
		case batch.Int64:
			cols[fi] = &batch.Int64Column{Values: make([]int64, n), Nulls: batch.NewNullMap(n)}
		case batch.Timestamp:
			cols[fi] = &batch.TimestampColumn{Micros: make([]int64, n), Nulls: batch.NewNullMap(n)}
		case batch.Float64:
			cols[fi] = &batch.Float64Column{Values: make([]float64, n), Nulls: batch.NewNullMap(n)}
		case batch.Bool:
			c := batch.NewBoolColumn(n)
			c.Nulls = batch.NewNullMap(n)
			cols[fi] = c
		case batch.String:
			cols[fi] = batch.NewStringColumn(n)
		case batch.StringView:
			cols[fi] = batch.NewStringViewColumn(n)
		default:
			return nil, ErrUnsupportedType
		}
	}
	for row := 0; row < n; row++ {
		b := rows.Row(row)
		for fi, f := range e.fields {
			var err error
			b, err = decodeField(cols, fi, f, row, b)
			if err != nil {
				return nil, err
			}
		}
	}
	return cols, nil
}

// decodeField consumes this field's encoding from the front of b, writes
// the decoded value into cols[fi] at row, and returns the remaining bytes.
func decodeField(cols []batch.Column, fi int, f SortField, row int, b []byte) ([]byte, error) {
	nullMarker, _ := fieldMarkers(f.NullsFirst)
	marker := b[0]
	rest := b[1:]
	if marker == nullMarker {
		setNull(cols[fi], row)
		return rest, nil
	}
	switch f.Type {
	case batch.Int64:
		u := decodeUint64(rest[:8], f.Descending)
		cols[fi].(*batch.Int64Column).Values[row] = int64(u ^ signBit)
		return rest[8:], nil
	case batch.Timestamp:
		u := decodeUint64(rest[:8], f.Descending)
		cols[fi].(*batch.TimestampColumn).Micros[row] = int64(u ^ signBit)
		return rest[8:], nil
	case batch.Float64:
		u := decodeUint64(rest[:8], f.Descending)
		cols[fi].(*batch.Float64Column).Values[row] = decodeOrderPreservingFloat(u)
		return rest[8:], nil
	case batch.Bool:
		v := rest[0]
		if f.Descending {
			v = ^v
		}
		cols[fi].(*batch.BoolColumn).Set(row, v == 0x01)
		return rest[1:], nil
	case batch.String, batch.StringView:
		return decodeString(cols[fi], row, rest, f.Descending)
	default:
		return nil, ErrUnsupportedType
	}
}

func decodeUint64(b []byte, descending bool) uint64 {
	if descending {
		inv := make([]byte, len(b))
		for i, x := range b {
			inv[i] = ^x
		}
		b = inv
	}
	return binary.BigEndian.Uint64(b)
}

func decodeOrderPreservingFloat(bits uint64) float64 {
	if bits&signBit != 0 {
		return math.Float64frombits(bits &^ signBit)
	}
	return math.Float64frombits(^bits)
}

// decodeString consumes an escaped, terminator-delimited string value from
// the front of b (already past the presence marker byte), un-escaping as it
// goes, and returns the bytes following the terminator.
func decodeString(col batch.Column, row int, b []byte, descending bool) ([]byte, error) {
	var out []byte
	i := 0
	for {
		c0, c1 := b[i], b[i+1]
		if descending {
			c0, c1 = ^c0, ^c1
		}
		if c0 == 0x00 {
			if c1 == 0x00 {
				i += 2
				break
			}
			out = append(out, 0x00)
			i += 2
			continue
		}
		out = append(out, c0)
		i++
	}
	appendString(col, row, out)
	return b[i:], nil
}

func appendString(col batch.Column, row int, v []byte) {
	switch c := col.(type) {
	case *batch.StringColumn:
		c.Append(v, false)
	case *batch.StringViewColumn:
		c.Append(v, false)
	}
}

func setNull(col batch.Column, row int) {
	switch c := col.(type) {
	case *batch.Int64Column:
		c.Nulls.SetNull(row)
	case *batch.Float64Column:
		c.Nulls.SetNull(row)
	case *batch.TimestampColumn:
		c.Nulls.SetNull(row)
	case *batch.BoolColumn:
		c.Nulls.SetNull(row)
	case *batch.StringColumn:
		c.Append(nil, true)
	case *batch.StringViewColumn:
		c.Append(nil, true)
	}
}

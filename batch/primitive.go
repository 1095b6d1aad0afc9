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

package batch

import "github.com/nxsql/qcore/date"

// Int64Column is a packed buffer of int64 values plus an optional null
// bitmap. A nil Nulls means the column is non-nullable: the null test is
// skipped entirely, matching the "Primitive, nonnullable" builder variant.
type Int64Column struct {
	Values []int64
	Nulls  *NullMap
}

func (c *Int64Column) Type() Type        { return Int64 }
func (c *Int64Column) Len() int          { return len(c.Values) }
func (c *Int64Column) IsNull(i int) bool { return c.Nulls.IsNull(i) }
func (c *Int64Column) Slice(start, end int) Column {
	return &Int64Column{Values: c.Values[start:end], Nulls: c.Nulls.Slice(start, end)}
}

func concatInt64(refs []ColumnRef) Column {
	out := &Int64Column{Values: make([]int64, len(refs))}
	for i, r := range refs {
		src := r.Col.(*Int64Column)
		if src.IsNull(r.Row) {
			out.Nulls = out.Nulls.Append(src.Nulls, r.Row)
		} else {
			out.Values[i] = src.Values[r.Row]
			out.Nulls = appendNonNull(out.Nulls, i)
		}
	}
	return out
}

// Float64Column is a packed buffer of float64 values.
type Float64Column struct {
	Values []float64
	Nulls  *NullMap
}

func (c *Float64Column) Type() Type        { return Float64 }
func (c *Float64Column) Len() int          { return len(c.Values) }
func (c *Float64Column) IsNull(i int) bool { return c.Nulls.IsNull(i) }
func (c *Float64Column) Slice(start, end int) Column {
	return &Float64Column{Values: c.Values[start:end], Nulls: c.Nulls.Slice(start, end)}
}

func concatFloat64(refs []ColumnRef) Column {
	out := &Float64Column{Values: make([]float64, len(refs))}
	for i, r := range refs {
		src := r.Col.(*Float64Column)
		if src.IsNull(r.Row) {
			out.Nulls = out.Nulls.Append(src.Nulls, r.Row)
		} else {
			out.Values[i] = src.Values[r.Row]
			out.Nulls = appendNonNull(out.Nulls, i)
		}
	}
	return out
}

// BoolColumn is a packed bitmap of boolean values plus an optional null map.
type BoolColumn struct {
	Values *NullMap // a set bit means "true"
	Nulls  *NullMap
	n      int
}

func NewBoolColumn(n int) *BoolColumn {
	return &BoolColumn{Values: NewNullMap(n), n: n}
}

func (c *BoolColumn) Type() Type        { return Bool }
func (c *BoolColumn) Len() int          { return c.n }
func (c *BoolColumn) IsNull(i int) bool { return c.Nulls.IsNull(i) }
func (c *BoolColumn) At(i int) bool     { return c.Values.IsNull(i) }
func (c *BoolColumn) Set(i int, v bool) {
	if v {
		c.Values.SetNull(i)
	}
}
func (c *BoolColumn) Slice(start, end int) Column {
	return &BoolColumn{Values: c.Values.Slice(start, end), Nulls: c.Nulls.Slice(start, end), n: end - start}
}

// AppendOne grows the column by one slot, recording either a null or a
// boolean value. Used by the group-value builder, which appends one row at
// a time rather than constructing a column in bulk.
func (c *BoolColumn) AppendOne(null, value bool) {
	pos := c.n
	c.n++
	if null {
		c.Nulls = c.Nulls.AppendAt(pos, true)
		c.Values = c.Values.AppendAt(pos, false)
		return
	}
	c.Nulls = c.Nulls.AppendAt(pos, false)
	c.Values = c.Values.AppendAt(pos, value)
}

func concatBool(refs []ColumnRef) Column {
	out := NewBoolColumn(len(refs))
	for i, r := range refs {
		src := r.Col.(*BoolColumn)
		if src.IsNull(r.Row) {
			out.Nulls = out.Nulls.AppendAt(i, true)
		} else {
			out.Set(i, src.At(r.Row))
		}
	}
	return out
}

// TimestampColumn stores microseconds-since-epoch values.
type TimestampColumn struct {
	Micros []int64
	Nulls  *NullMap
}

func (c *TimestampColumn) Type() Type        { return Timestamp }
func (c *TimestampColumn) Len() int          { return len(c.Micros) }
func (c *TimestampColumn) IsNull(i int) bool { return c.Nulls.IsNull(i) }
func (c *TimestampColumn) Slice(start, end int) Column {
	return &TimestampColumn{Micros: c.Micros[start:end], Nulls: c.Nulls.Slice(start, end)}
}

// RFC3339 renders row i's value for display/debugging, the way a caller
// formatting a result set would. It does not consult the null bitmap: a
// null row renders whatever micros value its slot holds.
func (c *TimestampColumn) RFC3339(i int) string {
	return string(date.UnixMicro(c.Micros[i]).AppendRFC3339(nil))
}

func concatTimestamp(refs []ColumnRef) Column {
	out := &TimestampColumn{Micros: make([]int64, len(refs))}
	for i, r := range refs {
		src := r.Col.(*TimestampColumn)
		if src.IsNull(r.Row) {
			out.Nulls = out.Nulls.Append(src.Nulls, r.Row)
		} else {
			out.Micros[i] = src.Micros[r.Row]
			out.Nulls = appendNonNull(out.Nulls, i)
		}
	}
	return out
}

// appendNonNull grows m (allocating on first use) to cover index i without
// marking it null; it mirrors NullMap.Append's growth behavior for the case
// where the source value is non-null and there's nothing to copy.
func appendNonNull(m *NullMap, i int) *NullMap {
	if m == nil {
		m = NewNullMap(i + 1)
		return m
	}
	if m.n <= i {
		m.n = i + 1
		if need := (m.n + 63) / 64; need > len(m.bits) {
			grown := make([]uint64, need)
			copy(grown, m.bits)
			m.bits = grown
		}
	}
	return m
}

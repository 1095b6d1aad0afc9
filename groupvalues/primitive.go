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

package groupvalues

import "github.com/nxsql/qcore/batch"

// int64Builder implements both the "Primitive, nonnullable" and "Primitive,
// nullable" variants from spec.md's builder table: nulls is left nil (and
// thus free) when the builder never observes a null append.
type int64Builder struct {
	values []int64
	nulls  *batch.NullMap
}

func (b *int64Builder) EqualTo(storedRow int, col batch.Column, incomingRow int) bool {
	lhsNull := b.nulls.IsNull(storedRow)
	rhsNull := col.IsNull(incomingRow)
	if lhsNull || rhsNull {
		return lhsNull == rhsNull
	}
	return b.values[storedRow] == col.(*batch.Int64Column).Values[incomingRow]
}

func (b *int64Builder) Append(col batch.Column, row int) {
	pos := len(b.values)
	if col.IsNull(row) {
		b.nulls = b.nulls.AppendAt(pos, true)
		b.values = append(b.values, 0)
		return
	}
	b.nulls = b.nulls.AppendAt(pos, false)
	b.values = append(b.values, col.(*batch.Int64Column).Values[row])
}

func (b *int64Builder) Len() int      { return len(b.values) }
func (b *int64Builder) Size() int64   { return int64(len(b.values)) * 8 }
func (b *int64Builder) Build() batch.Column {
	return &batch.Int64Column{Values: b.values, Nulls: b.nulls}
}
func (b *int64Builder) TakeN(n int) batch.Column {
	out := &batch.Int64Column{Values: b.values[:n:n], Nulls: b.nulls.Slice(0, n)}
	b.values = append([]int64(nil), b.values[n:]...)
	b.nulls = b.nulls.Slice(n, b.nulls.Len())
	return out
}

type float64Builder struct {
	values []float64
	nulls  *batch.NullMap
}

func (b *float64Builder) EqualTo(storedRow int, col batch.Column, incomingRow int) bool {
	lhsNull := b.nulls.IsNull(storedRow)
	rhsNull := col.IsNull(incomingRow)
	if lhsNull || rhsNull {
		return lhsNull == rhsNull
	}
	return b.values[storedRow] == col.(*batch.Float64Column).Values[incomingRow]
}

func (b *float64Builder) Append(col batch.Column, row int) {
	pos := len(b.values)
	if col.IsNull(row) {
		b.nulls = b.nulls.AppendAt(pos, true)
		b.values = append(b.values, 0)
		return
	}
	b.nulls = b.nulls.AppendAt(pos, false)
	b.values = append(b.values, col.(*batch.Float64Column).Values[row])
}

func (b *float64Builder) Len() int    { return len(b.values) }
func (b *float64Builder) Size() int64 { return int64(len(b.values)) * 8 }
func (b *float64Builder) Build() batch.Column {
	return &batch.Float64Column{Values: b.values, Nulls: b.nulls}
}
func (b *float64Builder) TakeN(n int) batch.Column {
	out := &batch.Float64Column{Values: b.values[:n:n], Nulls: b.nulls.Slice(0, n)}
	b.values = append([]float64(nil), b.values[n:]...)
	b.nulls = b.nulls.Slice(n, b.nulls.Len())
	return out
}

type timestampBuilder struct {
	values []int64
	nulls  *batch.NullMap
}

func (b *timestampBuilder) EqualTo(storedRow int, col batch.Column, incomingRow int) bool {
	lhsNull := b.nulls.IsNull(storedRow)
	rhsNull := col.IsNull(incomingRow)
	if lhsNull || rhsNull {
		return lhsNull == rhsNull
	}
	return b.values[storedRow] == col.(*batch.TimestampColumn).Micros[incomingRow]
}

func (b *timestampBuilder) Append(col batch.Column, row int) {
	pos := len(b.values)
	if col.IsNull(row) {
		b.nulls = b.nulls.AppendAt(pos, true)
		b.values = append(b.values, 0)
		return
	}
	b.nulls = b.nulls.AppendAt(pos, false)
	b.values = append(b.values, col.(*batch.TimestampColumn).Micros[row])
}

func (b *timestampBuilder) Len() int    { return len(b.values) }
func (b *timestampBuilder) Size() int64 { return int64(len(b.values)) * 8 }
func (b *timestampBuilder) Build() batch.Column {
	return &batch.TimestampColumn{Micros: b.values, Nulls: b.nulls}
}
func (b *timestampBuilder) TakeN(n int) batch.Column {
	out := &batch.TimestampColumn{Micros: b.values[:n:n], Nulls: b.nulls.Slice(0, n)}
	b.values = append([]int64(nil), b.values[n:]...)
	b.nulls = b.nulls.Slice(n, b.nulls.Len())
	return out
}

type boolBuilder struct {
	col *batch.BoolColumn
}

func (b *boolBuilder) EqualTo(storedRow int, col batch.Column, incomingRow int) bool {
	lhsNull := b.col.IsNull(storedRow)
	rhsNull := col.IsNull(incomingRow)
	if lhsNull || rhsNull {
		return lhsNull == rhsNull
	}
	return b.col.At(storedRow) == col.(*batch.BoolColumn).At(incomingRow)
}

func (b *boolBuilder) Append(col batch.Column, row int) {
	if b.col == nil {
		b.col = batch.NewBoolColumn(0)
	}
	b.col.AppendOne(col.IsNull(row), !col.IsNull(row) && col.(*batch.BoolColumn).At(row))
}

func (b *boolBuilder) Len() int {
	if b.col == nil {
		return 0
	}
	return b.col.Len()
}
func (b *boolBuilder) Size() int64 { return int64((b.Len() + 7) / 8 * 2) }
func (b *boolBuilder) Build() batch.Column {
	return b.col
}
func (b *boolBuilder) TakeN(n int) batch.Column {
	out := b.col.Slice(0, n)
	b.col = b.col.Slice(n, b.col.Len()).(*batch.BoolColumn)
	return out
}

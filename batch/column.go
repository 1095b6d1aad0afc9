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

// Column is the polymorphic contract every typed array variant satisfies.
// Operators never need more than this: length, a null test, typed value
// access (through a type assertion to the concrete column), cheap slicing,
// and concatenation.
type Column interface {
	Type() Type
	Len() int
	IsNull(i int) bool
	// Slice returns a cheap sub-range sharing the underlying buffers where
	// possible.
	Slice(start, end int) Column
}

// Concat interleaves rows from multiple columns of identical type, selecting
// (columns[i], rows[i]) for each output position. It backs ConcatBatches,
// which the top-K operator uses to gather retained rows from many source
// batches into one output batch and the merge operator uses to assemble its
// output batches.
func Concat(typ Type, refs []ColumnRef) Column {
	switch typ {
	case Int64:
		return concatInt64(refs)
	case Float64:
		return concatFloat64(refs)
	case Bool:
		return concatBool(refs)
	case Timestamp:
		return concatTimestamp(refs)
	case String:
		return concatString(refs)
	case StringView:
		return concatStringView(refs)
	default:
		panic("batch: unsupported column type in Concat")
	}
}

// ColumnRef names one (column, row) pair to pull into a Concat output.
type ColumnRef struct {
	Col Column
	Row int
}

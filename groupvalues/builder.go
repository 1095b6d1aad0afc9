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

// Package groupvalues implements the per-data-type group-column builders
// that the hash group index and grouped aggregator use to store distinct
// group-by key values in insertion order without duplicating them in the
// hash table itself.
package groupvalues

import "github.com/nxsql/qcore/batch"

// Builder stores the distinct values of one group-by column, in insertion
// order, and answers equality against an incoming row without materializing
// a full comparison. One Builder instance exists per group-by expression in
// a running aggregation.
type Builder interface {
	// EqualTo reports whether the previously-appended value at storedRow
	// equals the value at (col, incomingRow). Null-equality rule: (null,
	// null) is equal; (null, value) and (value, null) are not; otherwise
	// compare values.
	EqualTo(storedRow int, col batch.Column, incomingRow int) bool

	// Append copies the value at (col, row) into internal storage,
	// extending the builder by one entry.
	Append(col batch.Column, row int)

	// Len reports the number of values currently stored.
	Len() int

	// Size reports the builder's approximate current byte footprint, for
	// memory-reservation accounting.
	Size() int64

	// Build consumes the builder, returning a typed column of every
	// appended value in insertion order. The builder must not be used
	// afterward.
	Build() batch.Column

	// TakeN destructively splits off the first n values as an emitted
	// column; the builder retains values n..Len()-1, renumbered to start
	// at 0.
	TakeN(n int) batch.Column
}

// New returns a fresh, empty Builder for the given column type.
func New(typ batch.Type) Builder {
	switch typ {
	case batch.Int64:
		return &int64Builder{}
	case batch.Float64:
		return &float64Builder{}
	case batch.Bool:
		return &boolBuilder{}
	case batch.Timestamp:
		return &timestampBuilder{}
	case batch.String:
		return &stringBuilder{}
	case batch.StringView:
		return &viewBuilder{}
	default:
		panic("groupvalues: unsupported column type")
	}
}

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

// Package accum implements the narrow per-aggregate accumulator contract
// spec.md treats as an opaque external collaborator: an accumulator owns
// per-group intermediate state and absorbs batches of values either in raw
// form (Partial/Single) or as previously-computed intermediate state
// (Final/FinalPartitioned).
package accum

import "github.com/nxsql/qcore/batch"

// Kind names which aggregate function an Accumulator implements, grounded
// on the dispatch table sneller's own hash-aggregate bytecode compiler
// uses internally (see DESIGN.md) — named here for the much smaller set
// this core operator core actually needs to dispatch.
type Kind int

const (
	Sum Kind = iota
	Count
	Min
	Max
	Avg
)

// Accumulator is one aggregate expression's per-group stateful object,
// created once per operator instance. Group index i always refers to the
// same group across every method call for the lifetime of the instance.
type Accumulator interface {
	// UpdateBatch absorbs one batch of raw values, grouped by
	// groupIndices[i] for row i, skipping rows where filter is non-nil and
	// filter.IsNull/false. totalGroups is the current group-index
	// cardinality (the accumulator grows its per-group state to match).
	UpdateBatch(values batch.Column, groupIndices []int32, filter *batch.BoolColumn, totalGroups int) error

	// MergeBatch absorbs a batch of previously-computed intermediate
	// state (as produced by State), ignoring any filter (the input is
	// already pre-aggregated).
	MergeBatch(values batch.Column, groupIndices []int32, totalGroups int) error

	// State emits the accumulator's intermediate per-group state as a
	// column, for Partial-mode emission.
	State() batch.Column

	// Evaluate emits the accumulator's final per-group value as a column,
	// for Single/Final/FinalPartitioned-mode emission.
	Evaluate() batch.Column

	// Size reports the accumulator's current byte footprint, for memory
	// reservation accounting.
	Size() int64
}

// New constructs an Accumulator of the given kind over the named numeric
// representation. floatValued selects the float64 variant; otherwise the
// int64 variant is used. Avg is always float64-valued regardless of input
// type, since an average of integers is not generally an integer.
func New(kind Kind, floatValued bool) Accumulator {
	if kind == Avg {
		return &avgAccumulator{}
	}
	if floatValued {
		return &float64Accumulator{kind: kind}
	}
	return &int64Accumulator{kind: kind}
}

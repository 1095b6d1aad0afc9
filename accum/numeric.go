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

package accum

import "github.com/nxsql/qcore/batch"

func passesFilter(filter *batch.BoolColumn, row int) bool {
	if filter == nil {
		return true
	}
	return !filter.IsNull(row) && filter.At(row)
}

func growInt64(s []int64, n int) []int64 {
	for len(s) < n {
		s = append(s, 0)
	}
	return s
}

func growFloat64(s []float64, n int) []float64 {
	for len(s) < n {
		s = append(s, 0)
	}
	return s
}

func growBool(s []bool, n int) []bool {
	for len(s) < n {
		s = append(s, false)
	}
	return s
}

// int64Accumulator implements Sum/Count/Min/Max over int64-valued columns.
type int64Accumulator struct {
	kind  Kind
	sums  []int64
	seen  []bool
}

func (a *int64Accumulator) UpdateBatch(values batch.Column, groupIndices []int32, filter *batch.BoolColumn, totalGroups int) error {
	a.sums = growInt64(a.sums, totalGroups)
	a.seen = growBool(a.seen, totalGroups)
	col := values.(*batch.Int64Column)
	for i, g := range groupIndices {
		if !passesFilter(filter, i) || col.IsNull(i) {
			continue
		}
		a.accumulate(int(g), col.Values[i])
	}
	return nil
}

func (a *int64Accumulator) MergeBatch(values batch.Column, groupIndices []int32, totalGroups int) error {
	if a.kind != Count {
		return a.UpdateBatch(values, groupIndices, nil, totalGroups)
	}
	// A Count state holds per-group counts, which add rather than count.
	a.sums = growInt64(a.sums, totalGroups)
	a.seen = growBool(a.seen, totalGroups)
	col := values.(*batch.Int64Column)
	for i, g := range groupIndices {
		if col.IsNull(i) {
			continue
		}
		a.sums[g] += col.Values[i]
		a.seen[g] = true
	}
	return nil
}

func (a *int64Accumulator) accumulate(g int, v int64) {
	switch a.kind {
	case Sum:
		a.sums[g] += v
	case Count:
		a.sums[g]++
	case Min:
		if !a.seen[g] || v < a.sums[g] {
			a.sums[g] = v
		}
	case Max:
		if !a.seen[g] || v > a.sums[g] {
			a.sums[g] = v
		}
	}
	a.seen[g] = true
}

func (a *int64Accumulator) State() batch.Column    { return a.Evaluate() }
func (a *int64Accumulator) Evaluate() batch.Column {
	nulls := batch.NewNullMap(len(a.sums))
	for i, ok := range a.seen {
		if !ok && a.kind != Count {
			nulls.SetNull(i)
		}
	}
	return &batch.Int64Column{Values: append([]int64(nil), a.sums...), Nulls: nulls}
}
func (a *int64Accumulator) Size() int64 { return int64(len(a.sums))*8 + int64(len(a.seen)) }

// float64Accumulator implements Sum/Count/Min/Max over float64-valued columns.
type float64Accumulator struct {
	kind Kind
	sums []float64
	seen []bool
}

func (a *float64Accumulator) UpdateBatch(values batch.Column, groupIndices []int32, filter *batch.BoolColumn, totalGroups int) error {
	a.sums = growFloat64(a.sums, totalGroups)
	a.seen = growBool(a.seen, totalGroups)
	col := values.(*batch.Float64Column)
	for i, g := range groupIndices {
		if !passesFilter(filter, i) || col.IsNull(i) {
			continue
		}
		a.accumulate(int(g), col.Values[i])
	}
	return nil
}

func (a *float64Accumulator) MergeBatch(values batch.Column, groupIndices []int32, totalGroups int) error {
	if a.kind != Count {
		return a.UpdateBatch(values, groupIndices, nil, totalGroups)
	}
	// A Count state holds per-group counts, which add rather than count.
	a.sums = growFloat64(a.sums, totalGroups)
	a.seen = growBool(a.seen, totalGroups)
	col := values.(*batch.Float64Column)
	for i, g := range groupIndices {
		if col.IsNull(i) {
			continue
		}
		a.sums[g] += col.Values[i]
		a.seen[g] = true
	}
	return nil
}

func (a *float64Accumulator) accumulate(g int, v float64) {
	switch a.kind {
	case Sum:
		a.sums[g] += v
	case Count:
		a.sums[g]++
	case Min:
		if !a.seen[g] || v < a.sums[g] {
			a.sums[g] = v
		}
	case Max:
		if !a.seen[g] || v > a.sums[g] {
			a.sums[g] = v
		}
	}
	a.seen[g] = true
}

func (a *float64Accumulator) State() batch.Column    { return a.Evaluate() }
func (a *float64Accumulator) Evaluate() batch.Column {
	nulls := batch.NewNullMap(len(a.sums))
	for i, ok := range a.seen {
		if !ok && a.kind != Count {
			nulls.SetNull(i)
		}
	}
	return &batch.Float64Column{Values: append([]float64(nil), a.sums...), Nulls: nulls}
}
func (a *float64Accumulator) Size() int64 { return int64(len(a.sums))*8 + int64(len(a.seen)) }

// avgAccumulator tracks a running (sum, count) pair per group so that
// State() can emit the intermediate pair for a Partial stage and
// Evaluate() can emit the divided final value for Single/Final stages.
type avgAccumulator struct {
	sums   []float64
	counts []int64
}

func (a *avgAccumulator) UpdateBatch(values batch.Column, groupIndices []int32, filter *batch.BoolColumn, totalGroups int) error {
	a.sums = growFloat64(a.sums, totalGroups)
	a.counts = growInt64(a.counts, totalGroups)
	switch col := values.(type) {
	case *batch.Int64Column:
		for i, g := range groupIndices {
			if !passesFilter(filter, i) || col.IsNull(i) {
				continue
			}
			a.sums[g] += float64(col.Values[i])
			a.counts[g]++
		}
	case *batch.Float64Column:
		for i, g := range groupIndices {
			if !passesFilter(filter, i) || col.IsNull(i) {
				continue
			}
			a.sums[g] += col.Values[i]
			a.counts[g]++
		}
	}
	return nil
}

// MergeBatch absorbs a previously-emitted (sum, count) State pair, adding
// each group's partial sum and count into this accumulator's totals.
func (a *avgAccumulator) MergeBatch(values batch.Column, groupIndices []int32, totalGroups int) error {
	a.sums = growFloat64(a.sums, totalGroups)
	a.counts = growInt64(a.counts, totalGroups)
	pair := values.(*AvgStatePair)
	for i, g := range groupIndices {
		if pair.Sums.IsNull(i) {
			continue
		}
		a.sums[g] += pair.Sums.Values[i]
		a.counts[g] += pair.Counts.Values[i]
	}
	return nil
}

func (a *avgAccumulator) State() batch.Column {
	return &AvgStatePair{
		Sums:   &batch.Float64Column{Values: append([]float64(nil), a.sums...)},
		Counts: &batch.Int64Column{Values: append([]int64(nil), a.counts...)},
	}
}

func (a *avgAccumulator) Evaluate() batch.Column {
	vals := make([]float64, len(a.sums))
	nulls := batch.NewNullMap(len(a.sums))
	for i, c := range a.counts {
		if c == 0 {
			nulls.SetNull(i)
			continue
		}
		vals[i] = a.sums[i] / float64(c)
	}
	return &batch.Float64Column{Values: vals, Nulls: nulls}
}

func (a *avgAccumulator) Size() int64 {
	return int64(len(a.sums))*8 + int64(len(a.counts))*8
}

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

// AvgStatePair is AVG's Partial-mode intermediate state: a running sum and
// a running count per group. It satisfies batch.Column only so it can flow
// through the same Accumulator.State()/MergeBatch(values batch.Column, ...)
// signatures every other accumulator uses; it is not a column type general
// operator code (batch.Concat, row encoding, group-value builders) knows
// how to interleave or sort — the aggregate package's Partial/Final
// plumbing handles it directly as a two-column pair rather than routing it
// through the generic single-column emission path.
type AvgStatePair struct {
	Sums   *batch.Float64Column
	Counts *batch.Int64Column
}

func (p *AvgStatePair) Type() batch.Type { return batch.Float64 }
func (p *AvgStatePair) Len() int         { return p.Sums.Len() }
func (p *AvgStatePair) IsNull(i int) bool {
	return p.Sums.IsNull(i)
}
func (p *AvgStatePair) Slice(start, end int) batch.Column {
	return &AvgStatePair{
		Sums:   p.Sums.Slice(start, end).(*batch.Float64Column),
		Counts: p.Counts.Slice(start, end).(*batch.Int64Column),
	}
}

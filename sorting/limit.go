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

package sorting

// Limit stores raw values of LIMIT and OFFSET from a query, per spec.md
// §4.6's "fetch limit N"; a nil *Limit means unlimited. merge.Merger reads
// Offset/Limit directly rather than through a range-computing helper, since
// its skip/emit bookkeeping is row-at-a-time across many streams rather
// than a single post-hoc range over one already-materialized sequence.
type Limit struct {
	Limit, Offset int
}

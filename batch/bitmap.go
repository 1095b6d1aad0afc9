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

import "github.com/nxsql/qcore/ints"

// NullMap is a packed bitmap in which a set bit marks a null slot.
// A nil *NullMap means "no nulls present".
type NullMap struct {
	bits []uint64
	n    int
}

// NewNullMap allocates a bitmap large enough for n slots, all non-null.
func NewNullMap(n int) *NullMap {
	return &NullMap{bits: make([]uint64, (n+63)/64), n: n}
}

// Len reports the bitmap's slot count. A nil receiver has length 0.
func (m *NullMap) Len() int {
	if m == nil {
		return 0
	}
	return m.n
}

// IsNull reports whether slot i is null. A nil receiver is never null.
func (m *NullMap) IsNull(i int) bool {
	if m == nil {
		return false
	}
	return ints.TestBit(m.bits, i)
}

func (m *NullMap) SetNull(i int) {
	ints.SetBit(m.bits, i)
}

func (m *NullMap) ClearNull(i int) {
	ints.ClearBit(m.bits, i)
}

// Slice returns the null bits for [start:end) as a fresh, independently
// addressable bitmap (slots are re-based to 0).
func (m *NullMap) Slice(start, end int) *NullMap {
	if m == nil {
		return nil
	}
	out := NewNullMap(end - start)
	for i := start; i < end; i++ {
		if m.IsNull(i) {
			out.SetNull(i - start)
		}
	}
	return out
}

// Append copies one bit from src[i] onto the end of m, growing m by one slot.
func (m *NullMap) Append(src *NullMap, i int) *NullMap {
	if m == nil {
		m = NewNullMap(0)
	}
	pos := m.n
	m.n++
	if need := (m.n + 63) / 64; need > len(m.bits) {
		grown := make([]uint64, need)
		copy(grown, m.bits)
		m.bits = grown
	}
	if src.IsNull(i) {
		m.SetNull(pos)
	}
	return m
}

// AppendAt records whether the slot at pos (the value's index in a sibling
// buffer tracked independently of m, such as a builder's value slice) is
// null, allocating and growing m on first use. Positions must be supplied
// in nondecreasing order by the caller, matching sequential-append usage.
func (m *NullMap) AppendAt(pos int, null bool) *NullMap {
	if m == nil && !null {
		return nil
	}
	if m == nil {
		m = NewNullMap(pos)
	}
	if m.n <= pos {
		m.n = pos + 1
		if need := (m.n + 63) / 64; need > len(m.bits) {
			grown := make([]uint64, need)
			copy(grown, m.bits)
			m.bits = grown
		}
	}
	if null {
		m.SetNull(pos)
	}
	return m
}

// AnyNull reports whether at least one bit in [0,n) is set.
func (m *NullMap) AnyNull() bool {
	if m == nil {
		return false
	}
	for i := 0; i < m.n; i++ {
		if m.IsNull(i) {
			return true
		}
	}
	return false
}

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

// StringColumn is a short-offset byte-string array: all values live in one
// concatenated Data buffer, and Offsets[i]:Offsets[i+1] bounds value i.
// len(Offsets) == Len()+1.
type StringColumn struct {
	Data    []byte
	Offsets []int32
	Nulls   *NullMap
}

func NewStringColumn(n int) *StringColumn {
	return &StringColumn{Offsets: make([]int32, 1, n+1)}
}

func (c *StringColumn) Type() Type        { return String }
func (c *StringColumn) Len() int          { return len(c.Offsets) - 1 }
func (c *StringColumn) IsNull(i int) bool { return c.Nulls.IsNull(i) }

func (c *StringColumn) At(i int) []byte {
	return c.Data[c.Offsets[i]:c.Offsets[i+1]]
}

// Append adds v (or, if null, a zero-length placeholder) to the end.
func (c *StringColumn) Append(v []byte, null bool) {
	pos := c.Len()
	if null {
		c.Nulls = c.Nulls.AppendAt(pos, true)
		c.Offsets = append(c.Offsets, c.Offsets[len(c.Offsets)-1])
		return
	}
	c.Nulls = c.Nulls.AppendAt(pos, false)
	c.Data = append(c.Data, v...)
	c.Offsets = append(c.Offsets, int32(len(c.Data)))
}

func (c *StringColumn) Slice(start, end int) Column {
	lo, hi := c.Offsets[start], c.Offsets[end]
	offs := make([]int32, end-start+1)
	for i := range offs {
		offs[i] = c.Offsets[start+i] - lo
	}
	return &StringColumn{
		Data:    c.Data[lo:hi],
		Offsets: offs,
		Nulls:   c.Nulls.Slice(start, end),
	}
}

func concatString(refs []ColumnRef) Column {
	out := NewStringColumn(len(refs))
	for _, r := range refs {
		src := r.Col.(*StringColumn)
		if src.IsNull(r.Row) {
			out.Append(nil, true)
		} else {
			out.Append(src.At(r.Row), false)
		}
	}
	return out
}

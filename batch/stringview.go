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

// viewInlineLen is the maximum length of a string value stored entirely
// inline in a View, with no spill-buffer indirection.
const viewInlineLen = 12

// View is a 128-bit-equivalent view over one string value: short values
// (<= viewInlineLen bytes) are stored inline, longer values record a length,
// a 4-byte prefix for fast inequality checks, a buffer index, and an offset
// into that buffer.
type View struct {
	Length int32
	Prefix [4]byte
	Inline [viewInlineLen]byte // valid iff Length <= viewInlineLen
	Buffer int32               // index into StringViewColumn.Buffers; -1 if inline
	Offset int32
}

func (v *View) isInline() bool { return v.Buffer < 0 }

func makeView(v []byte, bufIdx, offset int32) View {
	var out View
	out.Length = int32(len(v))
	if len(v) <= viewInlineLen {
		out.Buffer = -1
		copy(out.Inline[:], v)
		copy(out.Prefix[:], v)
		return out
	}
	out.Buffer = bufIdx
	out.Offset = offset
	copy(out.Prefix[:], v)
	return out
}

// StringViewColumn is a view-encoded byte-string array. Values too large to
// fit inline are appended to capped-size spill buffers referenced by index;
// TakeN must renumber buffer indices when it drops unreferenced buffers.
type StringViewColumn struct {
	Views   []View
	Buffers [][]byte
	Nulls   *NullMap
}

// maxSpillBufferSize bounds how large a single spill buffer is allowed to
// grow before a new one is started, so that retained batches never pin down
// one unbounded allocation.
const maxSpillBufferSize = 1 << 20

func NewStringViewColumn(n int) *StringViewColumn {
	return &StringViewColumn{Views: make([]View, 0, n)}
}

func (c *StringViewColumn) Type() Type        { return StringView }
func (c *StringViewColumn) Len() int          { return len(c.Views) }
func (c *StringViewColumn) IsNull(i int) bool { return c.Nulls.IsNull(i) }

func (c *StringViewColumn) At(i int) []byte {
	v := &c.Views[i]
	if v.isInline() {
		return v.Inline[:v.Length]
	}
	return c.Buffers[v.Buffer][v.Offset : v.Offset+v.Length]
}

// Append adds v (or a null placeholder) to the end, spilling into the last
// buffer if it has room or starting a fresh one otherwise.
func (c *StringViewColumn) Append(v []byte, null bool) {
	pos := len(c.Views)
	if null {
		c.Nulls = c.Nulls.AppendAt(pos, true)
		c.Views = append(c.Views, View{Buffer: -1})
		return
	}
	c.Nulls = c.Nulls.AppendAt(pos, false)
	if len(v) <= viewInlineLen {
		c.Views = append(c.Views, makeView(v, -1, 0))
		return
	}
	bufIdx := len(c.Buffers) - 1
	if bufIdx < 0 || len(c.Buffers[bufIdx])+len(v) > maxSpillBufferSize {
		c.Buffers = append(c.Buffers, nil)
		bufIdx = len(c.Buffers) - 1
	}
	offset := int32(len(c.Buffers[bufIdx]))
	c.Buffers[bufIdx] = append(c.Buffers[bufIdx], v...)
	c.Views = append(c.Views, makeView(v, int32(bufIdx), offset))
}

func (c *StringViewColumn) Slice(start, end int) Column {
	return &StringViewColumn{
		Views:   c.Views[start:end],
		Buffers: c.Buffers, // shared; buffer indices in Views remain valid
		Nulls:   c.Nulls.Slice(start, end),
	}
}

func concatStringView(refs []ColumnRef) Column {
	out := NewStringViewColumn(len(refs))
	for _, r := range refs {
		src := r.Col.(*StringViewColumn)
		if src.IsNull(r.Row) {
			out.Append(nil, true)
		} else {
			out.Append(src.At(r.Row), false)
		}
	}
	return out
}

// TakeN returns a fresh column holding only the rows named by idx, with
// spill buffers compacted to just the bytes those rows reference and view
// buffer indices renumbered to match.
func (c *StringViewColumn) TakeN(idx []int) *StringViewColumn {
	out := NewStringViewColumn(len(idx))
	for _, i := range idx {
		if c.IsNull(i) {
			out.Append(nil, true)
		} else {
			out.Append(c.At(i), false)
		}
	}
	return out
}

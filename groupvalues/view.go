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

import (
	"bytes"

	"github.com/nxsql/qcore/batch"
)

// viewBuilder implements the "View-encoded bytes" variant: values <= 12
// bytes live inline inside the view; longer values spill into a chain of
// capped-size buffers referenced by index. EqualTo compares the inline
// 4-byte prefix before following the indirection, per spec.md §4.2.
type viewBuilder struct {
	col *batch.StringViewColumn
}

func (b *viewBuilder) EqualTo(storedRow int, col batch.Column, incomingRow int) bool {
	lhsNull := b.col.IsNull(storedRow)
	rhsNull := col.IsNull(incomingRow)
	if lhsNull || rhsNull {
		return lhsNull == rhsNull
	}
	lhs := &b.col.Views[storedRow]
	rhsCol := col.(*batch.StringViewColumn)
	rhs := &rhsCol.Views[incomingRow]
	if lhs.Length != rhs.Length {
		return false
	}
	if lhs.Prefix != rhs.Prefix {
		return false
	}
	return bytes.Equal(b.col.At(storedRow), rhsCol.At(incomingRow))
}

func (b *viewBuilder) Append(col batch.Column, row int) {
	if b.col == nil {
		b.col = batch.NewStringViewColumn(0)
	}
	if col.IsNull(row) {
		b.col.Append(nil, true)
		return
	}
	b.col.Append(col.(*batch.StringViewColumn).At(row), false)
}

func (b *viewBuilder) Len() int {
	if b.col == nil {
		return 0
	}
	return b.col.Len()
}

func (b *viewBuilder) Size() int64 {
	if b.col == nil {
		return 0
	}
	sz := int64(len(b.col.Views)) * 24
	for _, buf := range b.col.Buffers {
		sz += int64(len(buf))
	}
	return sz
}

func (b *viewBuilder) Build() batch.Column { return b.col }

// TakeN splits off the first n values, dropping any spill buffers the
// surviving tail no longer references and renumbering the tail's view
// buffer indices to stay contiguous, per spec.md §4.2/§9.
func (b *viewBuilder) TakeN(n int) batch.Column {
	out := &batch.StringViewColumn{
		Views:   append([]batch.View(nil), b.col.Views[:n]...),
		Nulls:   b.col.Nulls.Slice(0, n),
	}
	out.Buffers = compactBuffers(b.col.Buffers, out.Views)

	tailViews := append([]batch.View(nil), b.col.Views[n:]...)
	tailNulls := b.col.Nulls.Slice(n, b.col.Len())
	tailBuffers, firstUsed := usedBufferRange(b.col.Buffers, tailViews)
	renumberViews(tailViews, firstUsed)

	b.col = &batch.StringViewColumn{Views: tailViews, Buffers: tailBuffers, Nulls: tailNulls}
	return out
}

// usedBufferRange returns the contiguous slice of buffers referenced by
// views (spill buffers are appended in order, and TakeN only ever removes a
// prefix, so "used" is always a suffix starting at the lowest referenced
// index) plus that starting index.
func usedBufferRange(buffers [][]byte, views []batch.View) ([][]byte, int32) {
	first := int32(len(buffers))
	for i := range views {
		if views[i].Buffer >= 0 && views[i].Buffer < first {
			first = views[i].Buffer
		}
	}
	if first >= int32(len(buffers)) {
		return nil, 0
	}
	out := make([][]byte, len(buffers)-int(first))
	for i, buf := range buffers[first:] {
		out[i] = append([]byte(nil), buf...)
	}
	return out, first
}

func renumberViews(views []batch.View, firstUsed int32) {
	for i := range views {
		if views[i].Buffer >= 0 {
			views[i].Buffer -= firstUsed
		}
	}
}

// compactBuffers copies the spill buffers from the lowest index the emitted
// views reference through the end of the chain into a fresh buffer set and
// renumbers the views to match, so the split-off column shares no buffer
// with the builder. Whole buffers are copied, including bytes and later
// buffers that only the tail references.
func compactBuffers(buffers [][]byte, views []batch.View) [][]byte {
	out, first := usedBufferRange(buffers, views)
	renumberViews(views, first)
	return out
}

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

// stringBuilder implements the "Short-offset bytes" variant: a concatenated
// value buffer plus offsets, where null is a zero-length slot.
type stringBuilder struct {
	col *batch.StringColumn
}

func (b *stringBuilder) EqualTo(storedRow int, col batch.Column, incomingRow int) bool {
	lhsNull := b.col.IsNull(storedRow)
	rhsNull := col.IsNull(incomingRow)
	if lhsNull || rhsNull {
		return lhsNull == rhsNull
	}
	return bytes.Equal(b.col.At(storedRow), col.(*batch.StringColumn).At(incomingRow))
}

func (b *stringBuilder) Append(col batch.Column, row int) {
	if b.col == nil {
		b.col = batch.NewStringColumn(0)
	}
	if col.IsNull(row) {
		b.col.Append(nil, true)
		return
	}
	b.col.Append(col.(*batch.StringColumn).At(row), false)
}

func (b *stringBuilder) Len() int {
	if b.col == nil {
		return 0
	}
	return b.col.Len()
}

func (b *stringBuilder) Size() int64 {
	if b.col == nil {
		return 0
	}
	return int64(len(b.col.Data)) + int64(len(b.col.Offsets))*4
}

func (b *stringBuilder) Build() batch.Column { return b.col }

func (b *stringBuilder) TakeN(n int) batch.Column {
	out := b.col.Slice(0, n)
	b.col = b.col.Slice(n, b.col.Len()).(*batch.StringColumn)
	return out
}

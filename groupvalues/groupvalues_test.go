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
	"testing"

	"github.com/nxsql/qcore/batch"
)

func TestInt64BuilderAppendEqualTakeN(t *testing.T) {
	b := New(batch.Int64)
	nulls := batch.NewNullMap(3)
	nulls.SetNull(1)
	src := &batch.Int64Column{Values: []int64{7, 0, 7}, Nulls: nulls}

	b.Append(src, 0)
	b.Append(src, 1)
	b.Append(src, 2)

	if !b.EqualTo(0, src, 2) {
		t.Fatal("stored row 0 (7) should equal incoming row 2 (7)")
	}
	if b.EqualTo(0, src, 1) {
		t.Fatal("value should not equal null")
	}

	first := b.TakeN(1).(*batch.Int64Column)
	if first.Len() != 1 || first.Values[0] != 7 {
		t.Fatalf("TakeN(1) = %+v", first)
	}
	if b.Len() != 2 {
		t.Fatalf("builder.Len() after TakeN = %d, want 2", b.Len())
	}
	rest := b.Build().(*batch.Int64Column)
	if !rest.IsNull(0) || rest.Values[1] != 7 {
		t.Fatalf("remaining builder state = %+v", rest)
	}
}

func TestStringBuilderEqualAndTakeN(t *testing.T) {
	b := New(batch.String)
	col := batch.NewStringColumn(0)
	col.Append([]byte("a"), false)
	col.Append([]byte("bb"), false)
	col.Append(nil, true)

	b.Append(col, 0)
	b.Append(col, 1)
	b.Append(col, 2)

	if !b.EqualTo(1, col, 1) {
		t.Fatal("row 1 should equal itself")
	}
	if b.EqualTo(0, col, 1) {
		t.Fatal("\"a\" should not equal \"bb\"")
	}

	out := b.TakeN(2).(*batch.StringColumn)
	if string(out.At(0)) != "a" || string(out.At(1)) != "bb" {
		t.Fatalf("TakeN(2) = %+v", out)
	}
	remaining := b.Build().(*batch.StringColumn)
	if !remaining.IsNull(0) {
		t.Fatal("remaining row should still be null")
	}
}

func TestViewBuilderTakeNRenumbersBuffers(t *testing.T) {
	b := New(batch.StringView).(*viewBuilder)
	col := batch.NewStringViewColumn(0)
	// Each value is over half the 1 MiB spill-buffer cap, so longB cannot
	// share longA's buffer and starts a second one.
	longA := bytes.Repeat([]byte("a"), 600000)
	longB := bytes.Repeat([]byte("b"), 600000)
	col.Append(longA, false)
	col.Append(longB, false)

	b.Append(col, 0)
	b.Append(col, 1)

	if len(b.col.Buffers) != 2 {
		t.Fatalf("expected two spill buffers before TakeN, got %d", len(b.col.Buffers))
	}

	out := b.TakeN(1).(*batch.StringViewColumn)
	if string(out.At(0)) != string(longA) {
		t.Fatalf("TakeN(1) row 0 = %q, want %q", out.At(0), longA)
	}

	// The retained tail held only the second (longB) value, whose buffer
	// index must be renumbered down to 0 now that buffer 0 was dropped.
	if len(b.col.Buffers) != 1 {
		t.Fatalf("retained builder should have 1 buffer left, got %d", len(b.col.Buffers))
	}
	if b.col.Views[0].Buffer != 0 {
		t.Fatalf("retained view's buffer index = %d, want 0", b.col.Views[0].Buffer)
	}
	if string(b.col.At(0)) != string(longB) {
		t.Fatalf("retained builder row 0 = %q, want %q", b.col.At(0), longB)
	}
}

func TestViewBuilderEqualToComparesPrefixAndBytes(t *testing.T) {
	b := New(batch.StringView)
	col := batch.NewStringViewColumn(0)
	col.Append([]byte("short1"), false)
	col.Append([]byte("short2"), false)

	b.Append(col, 0)
	b.Append(col, 1)

	if b.EqualTo(0, col, 1) {
		t.Fatal("\"short1\" should not equal \"short2\"")
	}
	if !b.EqualTo(0, col, 0) {
		t.Fatal("row should equal itself")
	}
}

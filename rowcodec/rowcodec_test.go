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

package rowcodec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/nxsql/qcore/batch"
)

func TestEncodeOrderMatchesSQLOrder(t *testing.T) {
	nulls := batch.NewNullMap(5)
	nulls.SetNull(4)
	col := &batch.Int64Column{Values: []int64{5, -3, 0, 100, 0}, Nulls: nulls}

	cases := []struct {
		name       string
		descending bool
		nullsFirst bool
		wantOrder  []int // row indices, in expected output order
	}{
		{"asc-nulls-last", false, false, []int{1, 2, 0, 3, 4}},
		{"asc-nulls-first", false, true, []int{4, 1, 2, 0, 3}},
		{"desc-nulls-last", true, false, []int{3, 0, 2, 1, 4}},
		{"desc-nulls-first", true, true, []int{4, 3, 0, 2, 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			enc := NewEncoder([]SortField{{Type: batch.Int64, Descending: c.descending, NullsFirst: c.nullsFirst}})
			rows, err := enc.Encode([]batch.Column{col}, nil)
			if err != nil {
				t.Fatal(err)
			}
			order := make([]int, rows.Len())
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(i, j int) bool {
				return bytes.Compare(rows.Row(order[i]), rows.Row(order[j])) < 0
			})
			if !equalInts(order, c.wantOrder) {
				t.Fatalf("order = %v, want %v", order, c.wantOrder)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	floats := &batch.Float64Column{Values: []float64{3.5, -2.25, 0}, Nulls: batch.NewNullMap(3)}
	floats.Nulls.SetNull(2)
	ints := &batch.Int64Column{Values: []int64{-1, 42, 0}}
	bools := batch.NewBoolColumn(0)
	bools.AppendOne(false, true)
	bools.AppendOne(false, false)
	bools.AppendOne(true, false)
	strs := batch.NewStringColumn(0)
	strs.Append([]byte("hello"), false)
	strs.Append([]byte{0x00, 0x01}, false)
	strs.Append(nil, true)

	fields := []SortField{
		{Type: batch.Float64},
		{Type: batch.Int64, Descending: true},
		{Type: batch.Bool},
		{Type: batch.String, NullsFirst: true},
	}
	enc := NewEncoder(fields)
	rows, err := enc.Encode([]batch.Column{floats, ints, bools, strs}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rows.Len() != 3 {
		t.Fatalf("rows.Len() = %d, want 3", rows.Len())
	}

	decoded, err := enc.Decode(rows)
	if err != nil {
		t.Fatal(err)
	}
	outFloats := decoded[0].(*batch.Float64Column)
	outInts := decoded[1].(*batch.Int64Column)
	outBools := decoded[2].(*batch.BoolColumn)
	outStrs := decoded[3].(*batch.StringColumn)

	for i, want := range floats.Values {
		if floats.IsNull(i) {
			if !outFloats.IsNull(i) {
				t.Fatalf("row %d: want null float", i)
			}
			continue
		}
		if outFloats.Values[i] != want {
			t.Fatalf("row %d: float = %v, want %v", i, outFloats.Values[i], want)
		}
	}
	for i, want := range ints.Values {
		if outInts.Values[i] != want {
			t.Fatalf("row %d: int = %v, want %v", i, outInts.Values[i], want)
		}
	}
	for i := 0; i < 3; i++ {
		if outBools.IsNull(i) != bools.IsNull(i) {
			t.Fatalf("row %d: bool null mismatch", i)
		}
		if !bools.IsNull(i) && outBools.At(i) != bools.At(i) {
			t.Fatalf("row %d: bool = %v, want %v", i, outBools.At(i), bools.At(i))
		}
	}
	for i := 0; i < 3; i++ {
		if strs.IsNull(i) {
			if !outStrs.IsNull(i) {
				t.Fatalf("row %d: want null string", i)
			}
			continue
		}
		if !bytes.Equal(outStrs.At(i), strs.At(i)) {
			t.Fatalf("row %d: string = %q, want %q", i, outStrs.At(i), strs.At(i))
		}
	}
}

func TestEncodeReusesScratchBuffer(t *testing.T) {
	enc := NewEncoder([]SortField{{Type: batch.Int64}})
	var scratch Rows

	first := &batch.Int64Column{Values: []int64{1, 2}}
	rows, err := enc.Encode([]batch.Column{first}, &scratch)
	if err != nil {
		t.Fatal(err)
	}
	if rows.Len() != 2 {
		t.Fatalf("first Encode: Len() = %d, want 2", rows.Len())
	}

	second := &batch.Int64Column{Values: []int64{9}}
	rows, err = enc.Encode([]batch.Column{second}, &scratch)
	if err != nil {
		t.Fatal(err)
	}
	if rows.Len() != 1 {
		t.Fatalf("second Encode: Len() = %d, want 1 (scratch buffer was not reset)", rows.Len())
	}
}

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

package aggregate

import (
	"context"
	"io"
	"testing"

	"github.com/nxsql/qcore/accum"
	"github.com/nxsql/qcore/batch"
	"github.com/nxsql/qcore/memory"
	"github.com/nxsql/qcore/operator"
)

func stringColumn(values []string, null []bool) *batch.StringColumn {
	c := batch.NewStringColumn(len(values))
	for i, v := range values {
		c.Append([]byte(v), null != nil && null[i])
	}
	return c
}

func zEval(rb *batch.RecordBatch) (batch.Column, error) { return rb.Column("z"), nil }
func yEval(rb *batch.RecordBatch) (batch.Column, error) { return rb.Column("y"), nil }

// TestGroupByNullableKeySum implements spec.md §8 scenario 1 verbatim:
// SELECT z, SUM(y) GROUP BY z over two input batches, nulls grouped
// together and distinct from any non-null key.
func TestGroupByNullableKeySum(t *testing.T) {
	schema := &batch.Schema{Fields: []batch.Field{
		{Name: "z", Type: batch.String, Nullable: true},
		{Name: "y", Type: batch.Int64},
	}}

	b1z := stringColumn([]string{"A", "", "A", "B"}, []bool{false, true, false, false})
	b1, err := batch.New(schema, []batch.Column{b1z, &batch.Int64Column{Values: []int64{1, 2, 3, 4}}})
	if err != nil {
		t.Fatal(err)
	}
	b2z := stringColumn([]string{"", "A", "B", "B"}, []bool{true, false, false, false})
	b2, err := batch.New(schema, []batch.Column{b2z, &batch.Int64Column{Values: []int64{5, 6, 7, 8}}})
	if err != nil {
		t.Fatal(err)
	}

	sumAccum := accum.New(accum.Sum, false)
	g := New(Single,
		[]GroupByExpr{{Name: "z", Type: batch.String, Eval: zEval}},
		[]AggregateExpr{{Name: "y", Kind: accum.Sum, ResultType: batch.Int64, Arg: yEval, Accum: sumAccum}},
		memory.NewPool(0), operator.Config{})

	if err := g.ConsumeBatch(b1); err != nil {
		t.Fatal(err)
	}
	if err := g.ConsumeBatch(b2); err != nil {
		t.Fatal(err)
	}
	out, err := g.Finish()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, rb := range out {
		zc := rb.Columns[0].(*batch.StringColumn)
		yc := rb.Columns[1].(*batch.Int64Column)
		for i := 0; i < rb.NumRows; i++ {
			key := "<null>"
			if !zc.IsNull(i) {
				key = string(zc.At(i))
			}
			got[key] = yc.Values[i]
		}
	}
	want := map[string]int64{"A": 10, "<null>": 7, "B": 19}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("group %q sum = %d, want %d (full result %v)", k, got[k], v, got)
		}
	}
}

// TestAggregationIndependentOfBatchPartitioning checks the universal
// invariant from spec.md §8: the same input split into different batch
// boundaries yields the same (key, result) multiset.
func TestAggregationIndependentOfBatchPartitioning(t *testing.T) {
	schema := &batch.Schema{Fields: []batch.Field{
		{Name: "z", Type: batch.String},
		{Name: "y", Type: batch.Int64},
	}}
	zs := []string{"A", "B", "A", "B", "A", "B"}
	ys := []int64{1, 2, 3, 4, 5, 6}

	run := func(splits []int) map[string]int64 {
		sumAccum := accum.New(accum.Sum, false)
		g := New(Single,
			[]GroupByExpr{{Name: "z", Type: batch.String, Eval: zEval}},
			[]AggregateExpr{{Name: "y", Kind: accum.Sum, ResultType: batch.Int64, Arg: yEval, Accum: sumAccum}},
			memory.NewPool(0), operator.Config{})
		pos := 0
		for _, n := range splits {
			zc := stringColumn(zs[pos:pos+n], nil)
			yc := &batch.Int64Column{Values: append([]int64(nil), ys[pos:pos+n]...)}
			rb, err := batch.New(schema, []batch.Column{zc, yc})
			if err != nil {
				t.Fatal(err)
			}
			if err := g.ConsumeBatch(rb); err != nil {
				t.Fatal(err)
			}
			pos += n
		}
		out, err := g.Finish()
		if err != nil {
			t.Fatal(err)
		}
		got := map[string]int64{}
		for _, rb := range out {
			zc := rb.Columns[0].(*batch.StringColumn)
			yc := rb.Columns[1].(*batch.Int64Column)
			for i := 0; i < rb.NumRows; i++ {
				got[string(zc.At(i))] = yc.Values[i]
			}
		}
		return got
	}

	oneBatch := run([]int{6})
	manyBatches := run([]int{1, 2, 3})
	if len(oneBatch) != len(manyBatches) {
		t.Fatalf("different group counts: %v vs %v", oneBatch, manyBatches)
	}
	for k, v := range oneBatch {
		if manyBatches[k] != v {
			t.Fatalf("group %q: one-batch=%d many-batches=%d", k, v, manyBatches[k])
		}
	}
}

func TestEmptyInputEmitsEmptyBatchWithDeclaredSchema(t *testing.T) {
	sumAccum := accum.New(accum.Sum, false)
	g := New(Single,
		[]GroupByExpr{{Name: "z", Type: batch.String, Eval: zEval}},
		[]AggregateExpr{{Name: "y", Kind: accum.Sum, ResultType: batch.Int64, Arg: yEval, Accum: sumAccum}},
		memory.NewPool(0), operator.Config{})

	out, err := g.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].NumRows != 0 {
		t.Fatalf("NumRows = %d, want 0", out[0].NumRows)
	}
	if len(out[0].Schema.Fields) != 2 {
		t.Fatalf("schema fields = %d, want 2", len(out[0].Schema.Fields))
	}
}

func TestPartialThenFinalModeMatchesSingleMode(t *testing.T) {
	schema := &batch.Schema{Fields: []batch.Field{
		{Name: "z", Type: batch.String},
		{Name: "y", Type: batch.Int64},
	}}
	zc := stringColumn([]string{"A", "B", "A"}, nil)
	yc := &batch.Int64Column{Values: []int64{1, 2, 3}}
	rb, err := batch.New(schema, []batch.Column{zc, yc})
	if err != nil {
		t.Fatal(err)
	}

	partial := New(Partial,
		[]GroupByExpr{{Name: "z", Type: batch.String, Eval: zEval}},
		[]AggregateExpr{{Name: "y", Kind: accum.Sum, ResultType: batch.Int64, Arg: yEval, Accum: accum.New(accum.Sum, false)}},
		memory.NewPool(0), operator.Config{})
	if err := partial.ConsumeBatch(rb); err != nil {
		t.Fatal(err)
	}
	partialOut, err := partial.Finish()
	if err != nil {
		t.Fatal(err)
	}

	final := New(Final,
		[]GroupByExpr{{Name: "z", Type: batch.String, Eval: zEval}},
		[]AggregateExpr{{Name: "y", Kind: accum.Sum, ResultType: batch.Int64, Arg: yEval, Accum: accum.New(accum.Sum, false)}},
		memory.NewPool(0), operator.Config{})
	for _, pb := range partialOut {
		if err := final.ConsumeBatch(pb); err != nil {
			t.Fatal(err)
		}
	}
	finalOut, err := final.Finish()
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]int64{}
	for _, rb := range finalOut {
		zc := rb.Columns[0].(*batch.StringColumn)
		yc := rb.Columns[1].(*batch.Int64Column)
		for i := 0; i < rb.NumRows; i++ {
			got[string(zc.At(i))] = yc.Values[i]
		}
	}
	if got["A"] != 4 || got["B"] != 2 {
		t.Fatalf("final-after-partial result = %v, want A=4 B=2", got)
	}
}

func TestAggregatorReportsResourceExhaustedThenEOF(t *testing.T) {
	schema := &batch.Schema{Fields: []batch.Field{
		{Name: "z", Type: batch.String},
		{Name: "y", Type: batch.Int64},
	}}
	zvals := make([]string, 64)
	yvals := make([]int64, 64)
	for i := range zvals {
		zvals[i] = string(rune('a' + i%26))
		yvals[i] = int64(i)
	}
	zc := stringColumn(zvals, nil)
	yc := &batch.Int64Column{Values: yvals}
	rb, err := batch.New(schema, []batch.Column{zc, yc})
	if err != nil {
		t.Fatal(err)
	}

	pool := memory.NewPool(256)
	g := New(Single,
		[]GroupByExpr{{Name: "z", Type: batch.String, Eval: zEval}},
		[]AggregateExpr{{Name: "y", Kind: accum.Sum, ResultType: batch.Int64, Arg: yEval, Accum: accum.New(accum.Sum, false)}},
		pool, operator.Config{})

	stream := &AsStream{Input: &oneShotStream{schema: schema, rb: rb}, Agg: g}
	_, err1 := stream.Next(context.Background())
	if err1 == nil {
		t.Fatal("expected the grouping input (which needs well over 256 bytes of builder state) to exhaust the pool")
	}
	if _, err := stream.Next(context.Background()); err != io.EOF {
		t.Fatalf("Next() after a terminal error = %v, want io.EOF", err)
	}
}

// oneShotStream yields one batch, then io.EOF forever.
type oneShotStream struct {
	schema *batch.Schema
	rb     *batch.RecordBatch
	served bool
}

func (s *oneShotStream) Schema() *batch.Schema { return s.schema }
func (s *oneShotStream) Next(ctx context.Context) (*batch.RecordBatch, error) {
	if s.served {
		return nil, io.EOF
	}
	s.served = true
	return s.rb, nil
}

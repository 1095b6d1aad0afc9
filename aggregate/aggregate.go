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

// Package aggregate implements the grouped aggregator operator: vectorized
// GROUP BY ... aggregates over a stream of record batches, per spec.md §4.4.
package aggregate

import (
	"context"
	"fmt"
	"io"

	"github.com/nxsql/qcore/accum"
	"github.com/nxsql/qcore/batch"
	"github.com/nxsql/qcore/hashindex"
	"github.com/nxsql/qcore/memory"
	"github.com/nxsql/qcore/operator"
)

// Mode selects how an aggregate expression's accumulator is driven and what
// it emits, per spec.md §4.4's "Mode semantics".
type Mode int

const (
	// Partial consumes raw input columns and emits intermediate state.
	Partial Mode = iota
	// Single consumes raw input columns and emits final values.
	Single
	// Final consumes pre-aggregated intermediate state and emits final
	// values.
	Final
	// FinalPartitioned is Final restricted to a single partition's
	// pre-aggregated state (same per-batch protocol as Final; the
	// distinction matters to the caller's plan shape, not to this
	// operator's behavior).
	FinalPartitioned
)

// Evaluator maps a record batch to one columnar array; it stands in for the
// expression evaluator spec.md §1 treats as an external collaborator.
type Evaluator func(*batch.RecordBatch) (batch.Column, error)

// GroupByExpr is one GROUP BY key column.
type GroupByExpr struct {
	Name string
	Type batch.Type
	Eval Evaluator
}

// AggregateExpr is one aggregate expression: an accumulator, the argument
// expression that feeds it, and an optional FILTER expression.
type AggregateExpr struct {
	Name string
	Kind accum.Kind
	// ResultType is the column type Accum.Evaluate()/State() (outside the
	// Partial-mode Avg special case, which always emits a float64 sum and
	// an int64 count) actually produces; Schema() reports it verbatim so
	// declared and emitted column types agree regardless of whether Accum
	// is the int64- or float64-valued variant of Kind.
	ResultType batch.Type
	Arg        Evaluator
	Filter     Evaluator // nil means unfiltered
	Accum      accum.Accumulator
}

// GroupedAggregator is the operator instance's state: group-column
// builders (reached through the hash index), one accumulator per
// aggregate expression, and the scratch slice reused across batches.
type GroupedAggregator struct {
	mode        Mode
	groupBy     []GroupByExpr
	aggs        []AggregateExpr
	index       *hashindex.GroupIndex
	reservation *memory.Reservation
	batchSize   int

	groupIdxScratch []int32
}

// New constructs a GroupedAggregator, registering one reservation against
// pool for its lifetime.
func New(mode Mode, groupBy []GroupByExpr, aggs []AggregateExpr, pool *memory.Pool, cfg operator.Config) *GroupedAggregator {
	types := make([]batch.Type, len(groupBy))
	for i, g := range groupBy {
		types[i] = g.Type
	}
	return &GroupedAggregator{
		mode:        mode,
		groupBy:     groupBy,
		aggs:        aggs,
		index:       hashindex.New(types),
		reservation: pool.NewReservation(),
		batchSize:   cfg.Size(),
	}
}

// Schema returns this aggregator's output schema: one field per GROUP BY
// key (Partial/Single/Final all emit keys), then one field per aggregate
// (two fields, "<name>_sum"/"<name>_count", for an AVG aggregate under
// Partial mode — see accum.AvgStatePair).
func (g *GroupedAggregator) Schema() *batch.Schema {
	s := &batch.Schema{}
	for _, gb := range g.groupBy {
		s = s.Append(batch.Field{Name: gb.Name, Type: gb.Type, Nullable: true})
	}
	for _, a := range g.aggs {
		if g.mode == Partial && a.Kind == accum.Avg {
			s = s.Append(
				batch.Field{Name: a.Name + "_sum", Type: batch.Float64, Nullable: true},
				batch.Field{Name: a.Name + "_count", Type: batch.Int64, Nullable: false},
			)
			continue
		}
		s = s.Append(batch.Field{Name: a.Name, Type: a.ResultType, Nullable: true})
	}
	return s
}

// ConsumeBatch runs the per-batch protocol of spec.md §4.4 steps 1-4 over
// one input batch.
func (g *GroupedAggregator) ConsumeBatch(rb *batch.RecordBatch) error {
	groupCols := make([]batch.Column, len(g.groupBy))
	for i, gb := range g.groupBy {
		c, err := gb.Eval(rb)
		if err != nil {
			return fmt.Errorf("aggregate: group-by expr %q: %w", gb.Name, err)
		}
		groupCols[i] = c
	}

	indices, _ := g.index.Resolve(groupCols, g.groupIdxScratch)
	g.groupIdxScratch = indices
	totalGroups := g.index.Len()

	for i := range g.aggs {
		a := &g.aggs[i]
		values, err := a.Arg(rb)
		if err != nil {
			return fmt.Errorf("aggregate: aggregate expr %q: %w", a.Name, err)
		}
		var filterCol *batch.BoolColumn
		if a.Filter != nil && (g.mode == Partial || g.mode == Single) {
			fc, err := a.Filter(rb)
			if err != nil {
				return fmt.Errorf("aggregate: filter for %q: %w", a.Name, err)
			}
			filterCol, _ = fc.(*batch.BoolColumn)
		}
		if g.mode == Partial || g.mode == Single {
			if err := a.Accum.UpdateBatch(values, indices, filterCol, totalGroups); err != nil {
				return err
			}
		} else {
			if err := a.Accum.MergeBatch(values, indices, totalGroups); err != nil {
				return err
			}
		}
	}

	return g.reservation.Resize(g.size())
}

func (g *GroupedAggregator) size() int64 {
	var total int64
	for _, b := range g.index.Builders() {
		total += b.Size()
	}
	for _, a := range g.aggs {
		total += a.Accum.Size()
	}
	return total
}

// Finish drains the group-value builders and accumulators into a sequence
// of output batches of at most batchSize rows each, per spec.md §4.4's
// Emission paragraph. Every aggregate's final/state column is computed
// once up front, then sliced alongside the (destructively split) group-key
// columns, so Accumulator.State/Evaluate is called exactly once per
// aggregate regardless of how many output batches result.
func (g *GroupedAggregator) Finish() ([]*batch.RecordBatch, error) {
	n := g.index.Len()
	schema := g.Schema()
	builders := g.index.Builders()

	aggCols := make([]batch.Column, len(g.aggs))
	for i := range g.aggs {
		a := &g.aggs[i]
		if g.mode == Partial {
			aggCols[i] = a.Accum.State()
		} else {
			aggCols[i] = a.Accum.Evaluate()
		}
	}

	if n == 0 {
		cols := make([]batch.Column, len(schema.Fields))
		for i, f := range schema.Fields {
			cols[i] = emptyColumn(f.Type)
		}
		rb, err := batch.New(schema, cols)
		if err != nil {
			return nil, err
		}
		return []*batch.RecordBatch{rb}, nil
	}

	var out []*batch.RecordBatch
	pos := 0
	for pos < n {
		take := n - pos
		if take > g.batchSize {
			take = g.batchSize
		}
		cols := make([]batch.Column, 0, len(schema.Fields))
		for _, b := range builders {
			cols = append(cols, b.TakeN(take))
		}
		for i := range g.aggs {
			a := &g.aggs[i]
			if g.mode == Partial && a.Kind == accum.Avg {
				pair := aggCols[i].(*accum.AvgStatePair)
				cols = append(cols, pair.Sums.Slice(pos, pos+take), pair.Counts.Slice(pos, pos+take))
				continue
			}
			cols = append(cols, aggCols[i].Slice(pos, pos+take))
		}
		rb, err := batch.New(schema, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, rb)
		pos += take
	}
	return out, nil
}

func emptyColumn(typ batch.Type) batch.Column {
	switch typ {
	case batch.Int64:
		return &batch.Int64Column{}
	case batch.Float64:
		return &batch.Float64Column{}
	case batch.Bool:
		return batch.NewBoolColumn(0)
	case batch.Timestamp:
		return &batch.TimestampColumn{}
	case batch.String:
		return batch.NewStringColumn(0)
	default:
		return batch.NewStringViewColumn(0)
	}
}

// AsStream wraps a GroupedAggregator around an input operator.Stream,
// presenting the combined Reading -> Producing(buffer) -> Done lifecycle
// of spec.md §4.4 as a single operator.Stream.
type AsStream struct {
	Input operator.Stream
	Agg   *GroupedAggregator

	pending []*batch.RecordBatch
	idx     int
	done    bool
}

func (s *AsStream) Schema() *batch.Schema { return s.Agg.Schema() }

// Next implements spec.md §7's propagation rule: once any call returns a
// non-EOF error, the stream is terminal — every subsequent call returns
// io.EOF without touching Input or Agg again, never a second error and
// never a data batch.
func (s *AsStream) Next(ctx context.Context) (*batch.RecordBatch, error) {
	for {
		if s.idx < len(s.pending) {
			b := s.pending[s.idx]
			s.idx++
			return b, nil
		}
		if s.done {
			return nil, io.EOF
		}
		rb, err := s.Input.Next(ctx)
		if err == io.EOF {
			out, ferr := s.Agg.Finish()
			if ferr != nil {
				s.done = true
				return nil, ferr
			}
			s.pending = out
			s.idx = 0
			s.done = true
			continue
		}
		if err != nil {
			s.done = true
			return nil, err
		}
		if err := s.Agg.ConsumeBatch(rb); err != nil {
			s.done = true
			return nil, err
		}
	}
}

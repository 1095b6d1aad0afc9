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

// Package merge implements the K-way sort-preserving merge operator: given
// N input streams that are each already sorted by the same key, it produces
// one output stream in that same sorted order, per spec.md §4.6.
//
// The tournament itself is the teacher's own generic heap package
// (heap.FixSlice/PopSlice/OrderSlice, see DESIGN.md) rather than a
// bespoke merge-specific heap, matching sorting/ktop.go's style of reusing
// that package for a bounded selection problem. A single input stream is not
// special-cased: a one-element tournament degenerates to a pure pull from
// that stream, which is the same observable behavior spec.md asks for.
package merge

import (
	"context"
	"errors"
	"io"

	"github.com/nxsql/qcore/batch"
	"github.com/nxsql/qcore/heap"
	"github.com/nxsql/qcore/operator"
	"github.com/nxsql/qcore/rowcodec"
	"github.com/nxsql/qcore/sorting"
)

// ErrNoStreams is returned by New when given zero input streams.
var ErrNoStreams = errors.New("merge: at least one input stream is required")

// KeyEvaluator extracts a stream's sort-key columns from one of its
// batches; like aggregate.Evaluator and topk's keyCols argument, it stands
// in for the expression evaluator spec.md §1 treats as an external
// collaborator.
type KeyEvaluator func(*batch.RecordBatch) ([]batch.Column, error)

type fetchResult struct {
	batch *batch.RecordBatch
	err   error
}

// streamCursor tracks one input stream's current batch and row position,
// fed by a goroutine that keeps one batch of lookahead buffered on a
// channel of capacity 1: the producer (Stream.Next, typically I/O-bound)
// runs one batch ahead of the consumer (the merge tournament, CPU-bound),
// so a slow stream doesn't stall the others' prefetch.
type streamCursor struct {
	idx     int
	stream  operator.Stream
	keyFn   KeyEvaluator
	encoder *rowcodec.Encoder

	batch *batch.RecordBatch
	rows  *rowcodec.Rows
	row   int

	ahead  chan fetchResult
	cancel context.CancelFunc
}

func newStreamCursor(ctx context.Context, idx int, s operator.Stream, keyFn KeyEvaluator, fields []rowcodec.SortField) *streamCursor {
	cctx, cancel := context.WithCancel(ctx)
	c := &streamCursor{
		idx:     idx,
		stream:  s,
		keyFn:   keyFn,
		encoder: rowcodec.NewEncoder(fields),
		ahead:   make(chan fetchResult, 1),
		cancel:  cancel,
	}
	go c.pump(cctx)
	return c
}

func (c *streamCursor) pump(ctx context.Context) {
	for {
		rb, err := c.stream.Next(ctx)
		select {
		case c.ahead <- fetchResult{rb, err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// fill advances the cursor to its next non-empty batch, re-encoding that
// batch's sort-key columns. It returns io.EOF once the stream is exhausted.
func (c *streamCursor) fill(ctx context.Context) error {
	for {
		var res fetchResult
		select {
		case res = <-c.ahead:
		case <-ctx.Done():
			return ctx.Err()
		}
		if res.err != nil {
			c.batch = nil
			return res.err
		}
		c.batch = res.batch
		c.row = 0
		if c.batch.NumRows == 0 {
			continue
		}
		keyCols, err := c.keyFn(c.batch)
		if err != nil {
			return err
		}
		rows, err := c.encoder.Encode(keyCols, c.rows)
		if err != nil {
			return err
		}
		c.rows = rows
		return nil
	}
}

func (c *streamCursor) key() []byte { return c.rows.Row(c.row) }

func (c *streamCursor) close() { c.cancel() }

// rowSource names one output row's origin: a source batch and its row
// index within that batch.
type rowSource struct {
	batch *batch.RecordBatch
	row   int
}

// Merger is the K-way merge operator. It satisfies operator.Stream.
type Merger struct {
	cursors   []*streamCursor
	heap      []*streamCursor
	schema    *batch.Schema
	limit     *sorting.Limit
	batchSize int

	started bool
	done    bool
	skipped int
	emitted int
}

// New builds a Merger over streams, which must already be sorted by the
// key fields describes. keyFns[i] extracts stream i's sort-key columns
// from one of its own batches. schema is the shared output schema (every
// input stream must produce batches with this column layout). limit, if
// non-nil, bounds and offsets the merged output the way a SQL LIMIT/OFFSET
// clause would; a nil limit emits every row.
func New(ctx context.Context, streams []operator.Stream, keyFns []KeyEvaluator, fields []rowcodec.SortField, schema *batch.Schema, limit *sorting.Limit, cfg operator.Config) (*Merger, error) {
	if len(streams) == 0 {
		return nil, ErrNoStreams
	}
	m := &Merger{
		schema:    schema,
		limit:     limit,
		batchSize: cfg.Size(),
	}
	m.cursors = make([]*streamCursor, len(streams))
	for i, s := range streams {
		m.cursors[i] = newStreamCursor(ctx, i, s, keyFns[i], fields)
	}
	return m, nil
}

func (m *Merger) Schema() *batch.Schema { return m.schema }

func lessCursor(a, b *streamCursor) bool {
	c := compareKeys(a.key(), b.key())
	if c != 0 {
		return c < 0
	}
	// Stable tie-break: the stream that was registered first wins, so
	// equal keys preserve the relative order of their origin streams.
	return a.idx < b.idx
}

func compareKeys(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (m *Merger) init(ctx context.Context) error {
	if m.started {
		return nil
	}
	m.started = true
	for _, c := range m.cursors {
		if err := c.fill(ctx); err != nil {
			if err == io.EOF {
				continue
			}
			m.done = true
			return err
		}
		m.heap = append(m.heap, c)
	}
	heap.OrderSlice(m.heap, lessCursor)
	return nil
}

// Next produces the next merged batch of at most Config.BatchSize rows, in
// sort-key order across all input streams, per spec.md §4.6.
func (m *Merger) Next(ctx context.Context) (*batch.RecordBatch, error) {
	if err := m.init(ctx); err != nil {
		return nil, err
	}
	if m.done {
		return nil, io.EOF
	}

	var refs []rowSource
	for len(refs) < m.batchSize && len(m.heap) > 0 {
		top := m.heap[0]
		rowCount := top.batch.NumRows

		take := true
		if m.limit != nil {
			if m.skipped < m.limit.Offset {
				m.skipped++
				take = false
			} else if m.limit.Limit > 0 && m.emitted >= m.limit.Limit {
				m.done = true
				m.heap = nil
				break
			}
		}
		if take {
			refs = append(refs, rowSource{batch: top.batch, row: top.row})
			m.emitted++
		}

		top.row++
		if top.row >= rowCount {
			if err := top.fill(ctx); err != nil {
				if err != io.EOF {
					m.done = true
					return nil, err
				}
				heap.PopSlice(&m.heap, lessCursor)
				continue
			}
		}
		heap.FixSlice(m.heap, 0, lessCursor)
	}

	if len(refs) == 0 {
		m.done = true
		return nil, io.EOF
	}
	return m.assemble(refs)
}

func (m *Merger) assemble(refs []rowSource) (*batch.RecordBatch, error) {
	colRefs := make([][]batch.ColumnRef, len(m.schema.Fields))
	for fi := range m.schema.Fields {
		colRefs[fi] = make([]batch.ColumnRef, len(refs))
		for j, r := range refs {
			colRefs[fi][j] = batch.ColumnRef{Col: r.batch.Columns[fi], Row: r.row}
		}
	}
	return batch.ConcatBatches(m.schema, colRefs)
}

// Close releases the per-stream lookahead goroutines. Callers that abandon
// a Merger before it reaches io.EOF must call Close to avoid leaking them.
func (m *Merger) Close() {
	for _, c := range m.cursors {
		c.close()
	}
}

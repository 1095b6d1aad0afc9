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

package streambridge

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/nxsql/qcore/batch"
	"github.com/nxsql/qcore/operator"
)

var testSchema = &batch.Schema{Fields: []batch.Field{{Name: "x", Type: batch.Int64}}}

// fakeStream replays a fixed sequence of (batch, error) pairs, one per Next
// call, then panics if called again.
type fakeStream struct {
	items []item
	i     int
}

func (f *fakeStream) Schema() *batch.Schema { return testSchema }
func (f *fakeStream) Next(ctx context.Context) (*batch.RecordBatch, error) {
	it := f.items[f.i]
	f.i++
	return it.batch, it.err
}

func mkBatch(n int) *batch.RecordBatch {
	rb, err := batch.New(testSchema, []batch.Column{&batch.Int64Column{Values: make([]int64, n)}})
	if err != nil {
		panic(err)
	}
	return rb
}

func TestBridgeForwardsBatchesThenEOF(t *testing.T) {
	inner := &fakeStream{items: []item{
		{batch: mkBatch(1)},
		{batch: mkBatch(2)},
		{err: io.EOF},
	}}
	b := New(context.Background(), inner)

	for i := 0; i < 2; i++ {
		rb, err := b.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if rb == nil {
			t.Fatalf("Next() #%d returned nil batch", i)
		}
	}
	if _, err := b.Next(context.Background()); err != io.EOF {
		t.Fatalf("Next() after data = %v, want io.EOF", err)
	}
}

func TestBridgeSurfacesUpstreamErrorThenEOF(t *testing.T) {
	wantErr := errors.New("boom")
	inner := &fakeStream{items: []item{
		{batch: mkBatch(1)},
		{err: wantErr},
	}}
	b := New(context.Background(), inner)

	if _, err := b.Next(context.Background()); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if _, err := b.Next(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("second Next() = %v, want %v", err, wantErr)
	}
	if _, err := b.Next(context.Background()); err != io.EOF {
		t.Fatalf("Next() after error = %v, want io.EOF", err)
	}
}

func TestBridgeConvertsProducerPanicToExecutorError(t *testing.T) {
	inner := &panicStream{}
	b := New(context.Background(), inner)
	_, err := b.Next(context.Background())
	if !errors.Is(err, operator.ErrExecutor) {
		t.Fatalf("Next() after producer panic = %v, want operator.ErrExecutor", err)
	}
	if _, err := b.Next(context.Background()); err != io.EOF {
		t.Fatalf("Next() after panic-error = %v, want io.EOF", err)
	}
}

type panicStream struct{}

func (p *panicStream) Schema() *batch.Schema { return testSchema }
func (p *panicStream) Next(ctx context.Context) (*batch.RecordBatch, error) {
	panic("producer exploded")
}

func TestBridgeCloseUnblocksProducer(t *testing.T) {
	block := make(chan struct{})
	inner := &blockingStream{unblock: block}
	b := New(context.Background(), inner)
	// Give the consumer up and close before ever calling Next, exactly as
	// spec.md §4.7 describes for a dropped receiver.
	b.Close()
	close(block)
	// The producer goroutine's next send attempt must observe b.done and
	// return instead of leaking; there is nothing further to assert from
	// the consumer side beyond "this test does not hang".
}

type blockingStream struct {
	unblock chan struct{}
	sent    bool
}

func (b *blockingStream) Schema() *batch.Schema { return testSchema }
func (b *blockingStream) Next(ctx context.Context) (*batch.RecordBatch, error) {
	<-b.unblock
	if b.sent {
		return nil, io.EOF
	}
	b.sent = true
	return mkBatch(1), nil
}

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

// Package streambridge implements the cross-runtime stream bridge of
// spec.md §4.7: it runs a CPU-bound producer stream on its own goroutine
// and exposes its output through a bounded channel of capacity 1 to a
// separate consumer, so that a slow or blocked I/O caller never stalls the
// producer's scheduling, and vice versa.
//
// Producer panics and the producer's own context cancellation are both
// reported as a single typed error (operator.ErrExecutor) appearing as the
// stream's last item, matching spec.md §4.7's "reports the producer's
// catastrophic failures (panic, cancellation) as a typed error on the
// stream before closing".
package streambridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nxsql/qcore/batch"
	"github.com/nxsql/qcore/operator"
)

type item struct {
	batch *batch.RecordBatch
	err   error
}

// Bridge is the consumer-facing side of the bridge; it satisfies
// operator.Stream.
type Bridge struct {
	schema *batch.Schema
	ch     chan item

	closeOnce sync.Once
	done      chan struct{}
}

// New starts inner's producer loop on a new goroutine and returns a Bridge
// that pulls from it over a bounded channel. ctx governs the producer's
// own Next calls into inner; it is independent of the ctx later passed to
// the returned Bridge's Next.
func New(ctx context.Context, inner operator.Stream) *Bridge {
	b := &Bridge{
		schema: inner.Schema(),
		ch:     make(chan item, 1),
		done:   make(chan struct{}),
	}
	go b.run(ctx, inner)
	return b
}

func (b *Bridge) run(ctx context.Context, inner operator.Stream) {
	defer close(b.ch)
	defer func() {
		if r := recover(); r != nil {
			b.trySend(item{err: fmt.Errorf("%w: producer panic: %v", operator.ErrExecutor, r)})
		}
	}()
	for {
		rb, err := inner.Next(ctx)
		if err == context.Canceled || err == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", operator.ErrExecutor, err)
		}
		if !b.trySend(item{batch: rb, err: err}) {
			return
		}
		if err != nil {
			return
		}
	}
}

// trySend delivers it to the consumer, or gives up if the consumer side
// has been closed (Bridge.Close), unblocking the producer exactly as
// spec.md §4.7 requires when "its receiver is dropped".
func (b *Bridge) trySend(it item) bool {
	select {
	case b.ch <- it:
		return true
	case <-b.done:
		return false
	}
}

func (b *Bridge) Schema() *batch.Schema { return b.schema }

// Next blocks until the producer has a batch ready, the producer stream
// ends or fails, or ctx is canceled.
func (b *Bridge) Next(ctx context.Context) (*batch.RecordBatch, error) {
	select {
	case it, ok := <-b.ch:
		if !ok {
			return nil, io.EOF
		}
		return it.batch, it.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unblocks the producer goroutine if it is waiting to send, so that
// dropping a consumer before the producer reaches end-of-stream does not
// leak the goroutine. It is safe to call more than once and safe to call
// after the producer has already finished.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

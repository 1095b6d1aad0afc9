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

// Package operator defines the external stream contract every core
// execution operator (grouped aggregator, top-K, merge, bridge) satisfies,
// the session configuration they observe, their metrics surface, and the
// shared error taxonomy from spec.md §7.
//
// spec.md describes operators as cooperative pull-based state machines
// (schema()/poll_next(waker) -> Pending|Ready(...)). The idiomatic Go
// rendering of that contract is a blocking call that takes a
// context.Context instead of a waker token: callers that need
// cooperative-yielding semantics get them from ctx cancellation, and
// "Pending" collapses into the call simply not having returned yet.
package operator

import (
	"context"
	"errors"
	"time"

	"github.com/nxsql/qcore/batch"
	"github.com/nxsql/qcore/ints"
)

// Stream is the pull-based interface every operator exposes. Next returns
// io.EOF once the stream is exhausted; any other error is terminal — per
// spec.md §7, once an operator returns an error, every subsequent Next call
// must return io.EOF, never a data batch or a second error.
type Stream interface {
	// Schema returns the stream's output schema, invariant for its
	// lifetime.
	Schema() *batch.Schema

	// Next produces the next batch, blocking until one is available, the
	// stream ends (io.EOF), or ctx is canceled.
	Next(ctx context.Context) (*batch.RecordBatch, error)
}

// Config is the session configuration every operator instance observes,
// corresponding to spec.md §6's "Session config observed".
type Config struct {
	// BatchSize bounds the row count of emitted batches.
	BatchSize int
}

// DefaultBatchSize is used when a Config's BatchSize is left at zero.
const DefaultBatchSize = 1024

// maxBatchSize bounds how large a single emitted batch may be, independent
// of whatever value a caller configures; it exists so a misconfigured huge
// BatchSize can't force an operator to build one unbounded allocation.
const maxBatchSize = 1 << 20

// Size returns c.BatchSize clamped to [1, maxBatchSize], or DefaultBatchSize
// if unset.
func (c Config) Size() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return ints.Clamp(c.BatchSize, 1, maxBatchSize)
}

// Metrics is the per-operator metrics surface from spec.md §6: wall-clock
// compute time, output row count, and start/end timestamps. Individual
// operators (Top-K) embed this and add their own counters.
type Metrics struct {
	ComputeTime time.Duration
	RowCount    int64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Observe records the wall-clock cost and row count of one Next call.
func (m *Metrics) Observe(start time.Time, rows int) {
	if m.StartedAt.IsZero() {
		m.StartedAt = start
	}
	m.ComputeTime += time.Since(start)
	m.RowCount += int64(rows)
	m.FinishedAt = time.Now()
}

// Error taxonomy, per spec.md §7. Each is a sentinel for errors.Is. Of
// these, only ErrExecutor is returned by this module's operators
// (streambridge wraps it with fmt.Errorf's %w); a memory-pool grow denial
// is reported as memory.ErrResourceExhausted, and an unsupported sort-key
// type as rowcodec.ErrUnsupportedType.
var (
	// ErrResourceExhausted mirrors memory.ErrResourceExhausted at the
	// operator-stream boundary: a memory-pool grow denial surfaced to the
	// caller of the current Next call.
	ErrResourceExhausted = errors.New("operator: resource exhausted")

	// ErrInvalidInput reports a schema mismatch between declared
	// sort/group expressions and the actual batch; fatal for the stream.
	ErrInvalidInput = errors.New("operator: invalid input")

	// ErrEncoder reports a type unsupported by the row encoder; fatal for
	// the stream.
	ErrEncoder = errors.New("operator: encoder error")

	// ErrExecutor reports a cross-runtime bridge producer failure (panic
	// or cancellation), surfaced as the stream's last item.
	ErrExecutor = errors.New("operator: executor failure")
)

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

// Package memory implements the shared memory-reservation accountant that
// operators grow and shrink as their internal state changes size. Per
// spec.md §5, reservation updates are fallible and atomic; the pool itself
// does not allocate or free any actual memory — it only approves or denies
// byte budgets.
package memory

import (
	"errors"
	"sync/atomic"
)

// ErrResourceExhausted is returned by Reservation.Grow/Resize when granting
// the request would exceed the pool's limit.
var ErrResourceExhausted = errors.New("memory: resource exhausted")

// Pool is a process-wide (or scope-wide) byte budget. A zero Limit means
// unbounded.
type Pool struct {
	limit int64
	used  int64
}

// NewPool creates a pool with the given byte limit. A limit of 0 means
// unbounded.
func NewPool(limit int64) *Pool {
	return &Pool{limit: limit}
}

// Used reports the pool's current total reserved bytes across all
// reservations.
func (p *Pool) Used() int64 { return atomic.LoadInt64(&p.used) }

// NewReservation creates an owned, zero-sized claim against the pool.
func (p *Pool) NewReservation() *Reservation {
	return &Reservation{pool: p}
}

// grow atomically adds delta to the pool's used total, denying the request
// (and leaving used unchanged) if it would exceed the limit.
func (p *Pool) grow(delta int64) error {
	if delta <= 0 {
		atomic.AddInt64(&p.used, delta)
		return nil
	}
	for {
		cur := atomic.LoadInt64(&p.used)
		next := cur + delta
		if p.limit > 0 && next > p.limit {
			return ErrResourceExhausted
		}
		if atomic.CompareAndSwapInt64(&p.used, cur, next) {
			return nil
		}
	}
}

// Reservation is an operator-owned claim on a Pool's budget. Operators
// report their current footprint by calling Resize as it changes; Grow is
// a convenience for "add delta to what I already hold".
type Reservation struct {
	pool *Pool
	size int64
}

// Size reports the reservation's currently granted byte size.
func (r *Reservation) Size() int64 { return atomic.LoadInt64(&r.size) }

// Grow increases this reservation by delta bytes (delta may be negative to
// shrink), returning ErrResourceExhausted without changing size if the pool
// denies the request.
func (r *Reservation) Grow(delta int64) error {
	if err := r.pool.grow(delta); err != nil {
		return err
	}
	atomic.AddInt64(&r.size, delta)
	return nil
}

// Resize sets the reservation to exactly newSize bytes, computing the
// delta against its current size. This is the form operators use to report
// "my footprint is now X" after recomputing their total state size.
func (r *Reservation) Resize(newSize int64) error {
	return r.Grow(newSize - r.Size())
}

// Release returns the reservation's entire claim to the pool.
func (r *Reservation) Release() {
	_ = r.Grow(-r.Size())
}

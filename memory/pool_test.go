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

package memory

import (
	"errors"
	"testing"
)

func TestReservationGrowAndRelease(t *testing.T) {
	p := NewPool(0)
	r := p.NewReservation()
	if err := r.Grow(100); err != nil {
		t.Fatal(err)
	}
	if r.Size() != 100 {
		t.Fatalf("Size() = %d, want 100", r.Size())
	}
	if p.Used() != 100 {
		t.Fatalf("pool.Used() = %d, want 100", p.Used())
	}
	r.Release()
	if r.Size() != 0 {
		t.Fatalf("Size() after Release = %d, want 0", r.Size())
	}
	if p.Used() != 0 {
		t.Fatalf("pool.Used() after Release = %d, want 0", p.Used())
	}
}

func TestResizeComputesDeltaAgainstCurrentSize(t *testing.T) {
	p := NewPool(0)
	r := p.NewReservation()
	if err := r.Resize(50); err != nil {
		t.Fatal(err)
	}
	if err := r.Resize(30); err != nil {
		t.Fatal(err)
	}
	if r.Size() != 30 {
		t.Fatalf("Size() = %d, want 30", r.Size())
	}
	if p.Used() != 30 {
		t.Fatalf("pool.Used() = %d, want 30", p.Used())
	}
}

func TestGrowDeniedOverLimitLeavesSizeUnchanged(t *testing.T) {
	p := NewPool(256)
	r := p.NewReservation()
	if err := r.Grow(200); err != nil {
		t.Fatal(err)
	}
	err := r.Grow(100)
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("Grow over limit = %v, want ErrResourceExhausted", err)
	}
	if r.Size() != 200 {
		t.Fatalf("Size() after denied grow = %d, want unchanged 200", r.Size())
	}
	if p.Used() != 200 {
		t.Fatalf("pool.Used() after denied grow = %d, want unchanged 200", p.Used())
	}
}

func TestIndependentReservationsShareOnePoolLimit(t *testing.T) {
	p := NewPool(150)
	r1 := p.NewReservation()
	r2 := p.NewReservation()
	if err := r1.Grow(100); err != nil {
		t.Fatal(err)
	}
	if err := r2.Grow(40); err != nil {
		t.Fatal(err)
	}
	if err := r2.Grow(20); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("r2.Grow(20) over shared limit = %v, want ErrResourceExhausted", err)
	}
	if r1.Size() != 100 || r2.Size() != 40 {
		t.Fatalf("reservations = (%d, %d), want (100, 40)", r1.Size(), r2.Size())
	}
}

func TestShrinkingGrowAlwaysSucceeds(t *testing.T) {
	p := NewPool(100)
	r := p.NewReservation()
	if err := r.Grow(100); err != nil {
		t.Fatal(err)
	}
	if err := r.Grow(-50); err != nil {
		t.Fatalf("shrinking Grow should never be denied, got %v", err)
	}
	if r.Size() != 50 {
		t.Fatalf("Size() = %d, want 50", r.Size())
	}
}

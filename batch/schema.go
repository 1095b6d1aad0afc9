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

// Package batch implements the columnar record-batch data model that the
// core execution operators (grouped aggregation, top-K, sort-preserving
// merge) pull their input from and push their output to.
//
// The wider query engine's memory format (compression, zero-copy mmap
// buffers, SIMD-friendly layout) is an external collaborator; this package
// only implements the narrow surface the operators actually invoke: length,
// null-bit test, typed value access, slice, and concatenate/interleave.
package batch

import "fmt"

// Type identifies the physical representation of a Column.
type Type int

const (
	Int64 Type = iota
	Float64
	Bool
	Timestamp
	String     // short-offset byte-string: concatenated buffer + offsets
	StringView // view-encoded byte-string: inline prefix or spilled pointer
)

func (t Type) String() string {
	switch t {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case Timestamp:
		return "timestamp"
	case String:
		return "string"
	case StringView:
		return "string_view"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Field describes one column of a Schema.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is the ordered list of fields produced by an operator. It is
// invariant across the lifetime of a single stream.
type Schema struct {
	Fields []Field
}

// IndexOf returns the position of the named field, or -1 if absent.
func (s *Schema) IndexOf(name string) int {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Append returns a new schema with the given fields appended.
func (s *Schema) Append(fields ...Field) *Schema {
	out := make([]Field, 0, len(s.Fields)+len(fields))
	out = append(out, s.Fields...)
	out = append(out, fields...)
	return &Schema{Fields: out}
}

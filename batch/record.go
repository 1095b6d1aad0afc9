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

package batch

import "fmt"

// RecordBatch is the unit of data that flows between operators: a fixed
// schema plus one Column per field, all sharing the same row count.
type RecordBatch struct {
	Schema  *Schema
	Columns []Column
	NumRows int
}

// New builds a RecordBatch, checking that every column's length matches.
func New(schema *Schema, columns []Column) (*RecordBatch, error) {
	if len(columns) != len(schema.Fields) {
		return nil, fmt.Errorf("batch: schema has %d fields, got %d columns", len(schema.Fields), len(columns))
	}
	n := 0
	if len(columns) > 0 {
		n = columns[0].Len()
	}
	for i, c := range columns {
		if c.Len() != n {
			return nil, fmt.Errorf("batch: column %d (%s) has %d rows, want %d", i, schema.Fields[i].Name, c.Len(), n)
		}
	}
	return &RecordBatch{Schema: schema, Columns: columns, NumRows: n}, nil
}

// Column returns the column for the named field, or nil if absent.
func (b *RecordBatch) Column(name string) Column {
	i := b.Schema.IndexOf(name)
	if i < 0 {
		return nil
	}
	return b.Columns[i]
}

// Slice returns the row range [start:end) as a new batch sharing the
// original's column storage where the underlying column type allows it.
func (b *RecordBatch) Slice(start, end int) *RecordBatch {
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c.Slice(start, end)
	}
	return &RecordBatch{Schema: b.Schema, Columns: cols, NumRows: end - start}
}

// ConcatBatches builds one output batch by gathering (batch, row) pairs from
// possibly many input batches sharing a schema. refs[col][i] selects the
// source for output row i of column col.
func ConcatBatches(schema *Schema, refs [][]ColumnRef) (*RecordBatch, error) {
	if len(refs) != len(schema.Fields) {
		return nil, fmt.Errorf("batch: schema has %d fields, got %d ref columns", len(schema.Fields), len(refs))
	}
	cols := make([]Column, len(refs))
	n := 0
	if len(refs) > 0 {
		n = len(refs[0])
	}
	for i, f := range schema.Fields {
		if len(refs[i]) != n {
			return nil, fmt.Errorf("batch: ref column %d (%s) has %d rows, want %d", i, f.Name, len(refs[i]), n)
		}
		cols[i] = Concat(f.Type, refs[i])
	}
	return &RecordBatch{Schema: schema, Columns: cols, NumRows: n}, nil
}

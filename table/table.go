/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package table is an immutable, explicitly typed tabular dataset: an ordered
sequence of records sharing one validated schema. Every operation is a pure
function returning a new Table; no operation mutates its receiver.
*/
package table

import (
	"fmt"
	"strings"
)

// Table holds an ordered list of rows over a fixed list of unique column names.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New validates the schema and copies rows so later changes to the caller's slices
// cannot reach the table.
func New(columns []string, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return nil, &SchemaError{Column: fmt.Sprintf("#%d", i+1), Reason: "empty column name"}
		}
		if _, dup := index[c]; dup {
			return nil, &SchemaError{Column: c, Reason: "duplicate column"}
		}
		index[c] = i
	}

	copied := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, &SchemaError{Column: "*", Row: i + 1, Reason: fmt.Sprintf("expected %d fields, got %d", len(columns), len(row))}
		}
		copied[i] = append([]Value(nil), row...)
	}

	cols := append([]string(nil), columns...)
	return &Table{columns: cols, index: index, rows: copied}, nil
}

// MustNew is New for literal tables in tests and fixtures; it panics on a schema error.
func MustNew(columns []string, rows [][]Value) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// build wraps already-owned slices without copying. Callers guarantee the schema is valid.
func build(columns []string, rows [][]Value) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Table{columns: columns, index: index, rows: rows}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len is the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Has reports whether the column exists.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Require returns a SchemaError for the first absent column.
func (t *Table) Require(columns ...string) error {
	for _, c := range columns {
		if !t.Has(c) {
			return MissingColumn(c)
		}
	}
	return nil
}

// Row returns the i-th record.
func (t *Table) Row(i int) Record {
	return Record{table: t, values: t.rows[i], pos: i}
}

// Records returns every record in order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Column returns a copy of one column's values.
func (t *Table) Column(name string) ([]Value, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, MissingColumn(name)
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Record is a read-only view of one row.
type Record struct {
	table  *Table
	values []Value
	pos    int
}

// Get returns the value of column, or Null when the column does not exist.
func (r Record) Get(column string) Value {
	idx, ok := r.table.index[column]
	if !ok {
		return Null()
	}
	return r.values[idx]
}

// Position is the 0-based index of the record within its table.
func (r Record) Position() int {
	return r.pos
}

// Values returns a copy of the record's cells in column order.
func (r Record) Values() []Value {
	return append([]Value(nil), r.values...)
}

// Map returns the record keyed by column name.
func (r Record) Map() map[string]Value {
	out := make(map[string]Value, len(r.values))
	for i, c := range r.table.columns {
		out[c] = r.values[i]
	}
	return out
}

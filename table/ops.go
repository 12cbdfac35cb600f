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

package table

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Merge indicator values written by OuterJoin.
const (
	SideBoth      = "both"
	SideLeftOnly  = "left_only"
	SideRightOnly = "right_only"
)

// Suffixes disambiguate non-key columns present on both sides of a join.
type Suffixes struct {
	Left  string
	Right string
}

// DefaultSuffixes mirrors the conventional _x/_y naming.
var DefaultSuffixes = Suffixes{Left: "_x", Right: "_y"}

// JoinOptions configures OuterJoin.
type JoinOptions struct {
	Suffixes Suffixes
	// Indicator names the column recording which side(s) produced each row. Empty disables it.
	Indicator string
}

// Filter keeps the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) *Table {
	rows := make([][]Value, 0, len(t.rows))
	for i, row := range t.rows {
		if keep(t.Row(i)) {
			rows = append(rows, row)
		}
	}
	return build(t.columns, rows)
}

// Drop removes the named columns. Names that do not exist are ignored.
func (t *Table) Drop(columns ...string) *Table {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[c] = true
	}

	var keep []int
	var cols []string
	for i, c := range t.columns {
		if !drop[c] {
			keep = append(keep, i)
			cols = append(cols, c)
		}
	}

	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		out := make([]Value, len(keep))
		for j, idx := range keep {
			out[j] = row[idx]
		}
		rows[r] = out
	}
	return build(cols, rows)
}

// Select projects the table onto columns, in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	if err := t.Require(columns...); err != nil {
		return nil, err
	}
	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		out := make([]Value, len(columns))
		for j, c := range columns {
			out[j] = row[t.index[c]]
		}
		rows[r] = out
	}
	return New(columns, rows)
}

// Rename maps old column names to new ones. Old names that do not exist are ignored;
// a rename that collides with another column is a SchemaError.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if to, ok := mapping[c]; ok {
			cols[i] = to
			continue
		}
		cols[i] = c
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return nil, &SchemaError{Column: c, Reason: "duplicate column after rename"}
		}
		seen[c] = true
	}
	return build(cols, t.rows), nil
}

// WithColumn derives a column from every record. An existing column of the same name
// is replaced in place; otherwise the column is appended. The first error from fn
// aborts the operation.
func (t *Table) WithColumn(name string, fn func(Record) (Value, error)) (*Table, error) {
	idx, exists := t.index[name]
	cols := t.columns
	if !exists {
		cols = append(append([]string(nil), t.columns...), name)
	}

	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		v, err := fn(t.Row(r))
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(cols))
		copy(out, row)
		if exists {
			out[idx] = v
		} else {
			out[len(cols)-1] = v
		}
		rows[r] = out
	}
	return build(cols, rows), nil
}

// GroupSum groups by key and sums the decimal column value. The result has exactly the
// columns [key, value], one row per distinct key, ordered by key. A null key, a null
// amount or a non-decimal amount is a SchemaError.
func (t *Table) GroupSum(key, value string) (*Table, error) {
	if err := t.Require(key, value); err != nil {
		return nil, err
	}
	ki, vi := t.index[key], t.index[value]

	type group struct {
		key Value
		sum decimal.Decimal
	}
	groups := make(map[string]*group)
	var order []*group

	for r, row := range t.rows {
		k := row[ki]
		if k.IsNull() {
			return nil, &SchemaError{Column: key, Row: r + 1, Reason: "missing value"}
		}
		amount, ok := row[vi].Dec()
		if !ok {
			reason := "not a decimal: " + row[vi].Kind().String()
			if row[vi].IsNull() {
				reason = "missing value"
			}
			return nil, &SchemaError{Column: value, Row: r + 1, Reason: reason}
		}
		g, seen := groups[k.Key()]
		if !seen {
			g = &group{key: k, sum: decimal.Zero}
			groups[k.Key()] = g
			order = append(order, g)
		}
		g.sum = g.sum.Add(amount)
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].key.Less(order[j].key) })

	rows := make([][]Value, len(order))
	for i, g := range order {
		rows[i] = []Value{g.key, Decimal(g.sum)}
	}
	return build([]string{key, value}, rows), nil
}

// InnerJoin keeps only keys present on both sides. Rows follow the left table's order.
func InnerJoin(left, right *Table, on string, sfx Suffixes) (*Table, error) {
	return join(left, right, on, JoinOptions{Suffixes: sfx}, false)
}

// OuterJoin keeps every row of both sides. Keys present on one side only get nulls for
// the other side's columns. Rows are ordered by key so the result is deterministic.
func OuterJoin(left, right *Table, on string, opts JoinOptions) (*Table, error) {
	return join(left, right, on, opts, true)
}

func join(left, right *Table, on string, opts JoinOptions, outer bool) (*Table, error) {
	if err := left.Require(on); err != nil {
		return nil, err
	}
	if err := right.Require(on); err != nil {
		return nil, err
	}

	cols, leftCols, rightCols := joinColumns(left, right, on, opts.Suffixes)
	if opts.Indicator != "" {
		cols = append(cols, opts.Indicator)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return nil, &SchemaError{Column: c, Reason: "duplicate column in join result"}
		}
		seen[c] = true
	}

	lk, rk := left.index[on], right.index[on]
	rightByKey := make(map[string][]int)
	for i, row := range right.rows {
		if row[rk].IsNull() {
			continue
		}
		rightByKey[row[rk].Key()] = append(rightByKey[row[rk].Key()], i)
	}

	emit := func(key Value, l, r []Value, side string) []Value {
		out := make([]Value, 0, len(cols))
		out = append(out, key)
		for _, idx := range leftCols {
			if l == nil {
				out = append(out, Null())
				continue
			}
			out = append(out, l[idx])
		}
		for _, idx := range rightCols {
			if r == nil {
				out = append(out, Null())
				continue
			}
			out = append(out, r[idx])
		}
		if opts.Indicator != "" {
			out = append(out, String(side))
		}
		return out
	}

	var rows [][]Value
	matchedRight := make([]bool, len(right.rows))
	for _, l := range left.rows {
		key := l[lk]
		var partners []int
		if !key.IsNull() {
			partners = rightByKey[key.Key()]
		}
		if len(partners) == 0 {
			if outer {
				rows = append(rows, emit(key, l, nil, SideLeftOnly))
			}
			continue
		}
		for _, ri := range partners {
			matchedRight[ri] = true
			rows = append(rows, emit(key, l, right.rows[ri], SideBoth))
		}
	}

	if outer {
		for i, r := range right.rows {
			if !matchedRight[i] {
				rows = append(rows, emit(r[rk], nil, r, SideRightOnly))
			}
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i][0].Less(rows[j][0]) })
	}

	return build(cols, rows), nil
}

// joinColumns lays out [on, left non-key..., right non-key...], suffixing names that
// appear on both sides, and returns the source indexes of the non-key columns.
func joinColumns(left, right *Table, on string, sfx Suffixes) ([]string, []int, []int) {
	cols := []string{on}
	var leftIdx, rightIdx []int

	for i, c := range left.columns {
		if c == on {
			continue
		}
		name := c
		if right.Has(c) {
			name = c + sfx.Left
		}
		cols = append(cols, name)
		leftIdx = append(leftIdx, i)
	}
	for i, c := range right.columns {
		if c == on {
			continue
		}
		name := c
		if left.Has(c) {
			name = c + sfx.Right
		}
		cols = append(cols, name)
		rightIdx = append(rightIdx, i)
	}
	return cols, leftIdx, rightIdx
}

// ResolveJoinedName returns the name a column of one side carries after a join with the
// other side: unchanged unless the other side has a column of the same name.
func ResolveJoinedName(column string, other *Table, on, suffix string) string {
	if column == on || !other.Has(column) {
		return column
	}
	return column + suffix
}

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
Package matcher compares an internal ledger (source A) with a payment provider
export (source B). AggregateByDate compares daily totals and MergeDetail
classifies every operation present in either source.

Both operations are pure: inputs are never modified and every call allocates
fresh results, so concurrent runs need no locking.
*/
package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/Dussand/conciliacion-Gmoney/table"
)

// State of one per-date comparison.
type State string

const (
	StateReconciled State = "Reconciled"
	StateDiscrepant State = "Discrepant"
	// StateMissingInA and StateMissingInB only occur with JoinOuter.
	StateMissingInA State = "MissingInA"
	StateMissingInB State = "MissingInB"
)

// Result classifies one operation of the merged detail.
type Result string

const (
	// ResultStructuralDiffB: the operation is in A but missing from B.
	ResultStructuralDiffB Result = "StructuralDiffB"
	// ResultStructuralDiffA: the operation is in B but missing from A.
	ResultStructuralDiffA Result = "StructuralDiffA"
	ResultAmountMismatch  Result = "AmountMismatch"
	ResultOK              Result = "OK"
)

// Derived columns appended to the merged detail table.
const (
	ColumnResult           = "resultado"
	ColumnAmountDifference = "diferencias_importe"
)

const (
	aggDate   = "fecha"
	aggAmount = "total"
)

// ComparisonRow is the comparison of one date's totals.
type ComparisonRow struct {
	Date       table.Value         `json:"fecha"`
	TotalA     decimal.NullDecimal `json:"total_a"`
	TotalB     decimal.NullDecimal `json:"total_b"`
	Difference decimal.NullDecimal `json:"diferencia"`
	State      State               `json:"estado"`
}

// DetailRow is one operation of the merged detail. AmountDifference is invalid
// whenever either amount is.
type DetailRow struct {
	Key              table.Value         `json:"id_operacion"`
	Side             string              `json:"merge_side"`
	Result           Result              `json:"resultado"`
	AmountA          decimal.NullDecimal `json:"monto_a"`
	AmountB          decimal.NullDecimal `json:"monto_b"`
	AmountDifference decimal.NullDecimal `json:"diferencias_importe"`
	Record           table.Record        `json:"-"`
}

// Detail is the classified full outer join of both sources. Table holds every
// column of both sides plus the indicator, result and amount difference columns;
// Rows is parallel to it.
type Detail struct {
	JoinKey string
	Table   *table.Table
	Rows    []DetailRow
}

type Matcher struct {
	opts Options
}

// New validates opts and returns a Matcher.
func New(opts Options) (*Matcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{opts: opts}, nil
}

// Options returns the options the matcher was built with.
func (m *Matcher) Options() Options {
	return m.opts
}

// AggregateByDate sums each source's amounts per date and compares the totals,
// ordered by date. Difference is A minus B and a date is Reconciled only when it is
// exactly zero. With the default inner join, dates present in one source only are
// dropped; empty inputs yield an empty slice and no error.
func (m *Matcher) AggregateByDate(a, b *table.Table) ([]ComparisonRow, error) {
	totalsA, err := dailyTotals(a, m.opts.A)
	if err != nil {
		return nil, err
	}
	totalsB, err := dailyTotals(b, m.opts.B)
	if err != nil {
		return nil, err
	}

	sfx := table.Suffixes{Left: "_a", Right: "_b"}
	var joined *table.Table
	if m.opts.AggregateJoin == JoinOuter {
		joined, err = table.OuterJoin(totalsA, totalsB, aggDate, table.JoinOptions{Suffixes: sfx})
	} else {
		joined, err = table.InnerJoin(totalsA, totalsB, aggDate, sfx)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]ComparisonRow, 0, joined.Len())
	for _, r := range joined.Records() {
		row := ComparisonRow{
			Date:   r.Get(aggDate),
			TotalA: r.Get(aggAmount + sfx.Left).NullDec(),
			TotalB: r.Get(aggAmount + sfx.Right).NullDec(),
		}
		switch {
		case !row.TotalA.Valid:
			row.State = StateMissingInA
		case !row.TotalB.Valid:
			row.State = StateMissingInB
		default:
			diff := row.TotalA.Decimal.Sub(row.TotalB.Decimal)
			row.Difference = decimal.NewNullDecimal(diff)
			row.State = StateDiscrepant
			if diff.IsZero() {
				row.State = StateReconciled
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func dailyTotals(t *table.Table, src Source) (*table.Table, error) {
	totals, err := t.GroupSum(src.DateColumn, src.AmountColumn)
	if err != nil {
		return nil, table.WithSource(err, src.Name)
	}
	return totals.Rename(map[string]string{src.DateColumn: aggDate, src.AmountColumn: aggAmount})
}

// MergeDetail full outer joins both sources on joinKey and classifies every row:
// left_only is StructuralDiffB, right_only is StructuralDiffA, differing amounts are
// AmountMismatch and anything else is OK. Rows are ordered by joinKey.
func (m *Matcher) MergeDetail(a, b *table.Table, joinKey string) (*Detail, error) {
	if err := checkDetailInput(a, m.opts.A, joinKey); err != nil {
		return nil, err
	}
	if err := checkDetailInput(b, m.opts.B, joinKey); err != nil {
		return nil, err
	}

	amountA := table.ResolveJoinedName(m.opts.A.AmountColumn, b, joinKey, m.opts.A.Suffix)
	amountB := table.ResolveJoinedName(m.opts.B.AmountColumn, a, joinKey, m.opts.B.Suffix)

	merged, err := table.OuterJoin(a, b, joinKey, table.JoinOptions{
		Suffixes:  table.Suffixes{Left: m.opts.A.Suffix, Right: m.opts.B.Suffix},
		Indicator: m.opts.Indicator,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]DetailRow, merged.Len())
	for i, r := range merged.Records() {
		rows[i] = classify(r, joinKey, m.opts.Indicator, amountA, amountB)
	}

	merged, err = merged.WithColumn(ColumnResult, func(r table.Record) (table.Value, error) {
		return table.String(string(rows[r.Position()].Result)), nil
	})
	if err != nil {
		return nil, err
	}
	merged, err = merged.WithColumn(ColumnAmountDifference, func(r table.Record) (table.Value, error) {
		diff := rows[r.Position()].AmountDifference
		if !diff.Valid {
			return table.Null(), nil
		}
		return table.Decimal(diff.Decimal), nil
	})
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].Record = merged.Row(i)
	}
	return &Detail{JoinKey: joinKey, Table: merged, Rows: rows}, nil
}

// checkDetailInput requires the join key and amount columns and a decimal amount on
// every row, so a missing amount on a merged row always means the side is absent.
func checkDetailInput(t *table.Table, src Source, joinKey string) error {
	if err := t.Require(joinKey, src.AmountColumn); err != nil {
		return table.WithSource(err, src.Name)
	}
	for _, r := range t.Records() {
		v := r.Get(src.AmountColumn)
		if _, ok := v.Dec(); ok {
			continue
		}
		reason := "not a decimal: " + v.Kind().String()
		if v.IsNull() {
			reason = "missing value"
		}
		return &table.SchemaError{Source: src.Name, Column: src.AmountColumn, Row: r.Position() + 1, Reason: reason}
	}
	return nil
}

func classify(r table.Record, joinKey, indicator, amountA, amountB string) DetailRow {
	row := DetailRow{
		Key:     r.Get(joinKey),
		Side:    r.Get(indicator).Str(),
		AmountA: r.Get(amountA).NullDec(),
		AmountB: r.Get(amountB).NullDec(),
	}
	if row.AmountA.Valid && row.AmountB.Valid {
		row.AmountDifference = decimal.NewNullDecimal(row.AmountA.Decimal.Sub(row.AmountB.Decimal))
	}

	switch {
	case row.Side == table.SideLeftOnly:
		row.Result = ResultStructuralDiffB
	case row.Side == table.SideRightOnly:
		row.Result = ResultStructuralDiffA
	case !row.AmountA.Decimal.Equal(row.AmountB.Decimal):
		row.Result = ResultAmountMismatch
	default:
		row.Result = ResultOK
	}
	return row
}

// Differences returns every row that is not OK, in detail order. Its length is the
// discrepancy count.
func Differences(d *Detail) []DetailRow {
	var out []DetailRow
	for _, row := range d.Rows {
		if row.Result != ResultOK {
			out = append(out, row)
		}
	}
	return out
}

// DifferencesTable is Differences as a table with the same columns as d.Table.
func DifferencesTable(d *Detail) *table.Table {
	return d.Table.Filter(func(r table.Record) bool {
		return d.Rows[r.Position()].Result != ResultOK
	})
}

// Discrepant counts the comparisons that are not Reconciled.
func Discrepant(rows []ComparisonRow) int {
	n := 0
	for _, r := range rows {
		if r.State != StateReconciled {
			n++
		}
	}
	return n
}

// ResultLabel renders r for operators, naming the source an operation is missing from.
func (m *Matcher) ResultLabel(r Result) string {
	switch r {
	case ResultStructuralDiffB:
		return "Diferencia Estructural - " + label(m.opts.B)
	case ResultStructuralDiffA:
		return "Diferencia Estructural - " + label(m.opts.A)
	case ResultAmountMismatch:
		return "Diferencia Importe"
	default:
		return "OK"
	}
}

// StateLabel renders s for operators.
func (m *Matcher) StateLabel(s State) string {
	switch s {
	case StateReconciled:
		return "Conciliado"
	case StateMissingInA:
		return "Falta en " + label(m.opts.A)
	case StateMissingInB:
		return "Falta en " + label(m.opts.B)
	default:
		return "Diferencias"
	}
}

func label(s Source) string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

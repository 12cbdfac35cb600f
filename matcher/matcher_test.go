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

package matcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dussand/conciliacion-Gmoney/table"
)

const joinKey = "id_operacion"

type op struct {
	id     string
	amount string
	date   string
}

func ledger(ops ...op) *table.Table {
	return build([]string{joinKey, "total", "fecha"}, ops)
}

func provider(ops ...op) *table.Table {
	return build([]string{joinKey, "monto_gmoney", "fecha"}, ops)
}

func build(columns []string, ops []op) *table.Table {
	rows := make([][]table.Value, len(ops))
	for i, o := range ops {
		date := "2024-01-01"
		if o.date != "" {
			date = o.date
		}
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			panic(err)
		}
		rows[i] = []table.Value{
			table.String(o.id),
			table.Decimal(decimal.RequireFromString(o.amount)),
			table.Date(d),
		}
	}
	return table.MustNew(columns, rows)
}

func newMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := New(DefaultOptions())
	require.NoError(t, err)
	return m
}

func TestScenarioMatchedOperation(t *testing.T) {
	m := newMatcher(t)
	a := ledger(op{id: "T1", amount: "100", date: "2024-01-01"})
	b := provider(op{id: "T1", amount: "100", date: "2024-01-01"})

	detail, err := m.MergeDetail(a, b, joinKey)
	require.NoError(t, err)
	require.Len(t, detail.Rows, 1)
	assert.Equal(t, ResultOK, detail.Rows[0].Result)
	assert.True(t, detail.Rows[0].AmountDifference.Decimal.IsZero())
	assert.Empty(t, Differences(detail))

	rows, err := m.AggregateByDate(a, b)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Difference.Decimal.IsZero())
	assert.Equal(t, StateReconciled, rows[0].State)
}

func TestScenarioAmountMismatch(t *testing.T) {
	m := newMatcher(t)
	detail, err := m.MergeDetail(ledger(op{id: "T2", amount: "50"}), provider(op{id: "T2", amount: "45"}), joinKey)
	require.NoError(t, err)
	require.Len(t, detail.Rows, 1)

	row := detail.Rows[0]
	assert.Equal(t, ResultAmountMismatch, row.Result)
	require.True(t, row.AmountDifference.Valid)
	assert.True(t, row.AmountDifference.Decimal.Equal(decimal.NewFromInt(5)))
	assert.Len(t, Differences(detail), 1)
}

func TestScenarioMissingFromProvider(t *testing.T) {
	m := newMatcher(t)
	detail, err := m.MergeDetail(ledger(op{id: "T3", amount: "10"}), provider(), joinKey)
	require.NoError(t, err)
	require.Len(t, detail.Rows, 1)

	row := detail.Rows[0]
	assert.Equal(t, table.SideLeftOnly, row.Side)
	assert.Equal(t, ResultStructuralDiffB, row.Result)
	assert.False(t, row.AmountDifference.Valid)
	assert.True(t, row.Record.Get(ColumnAmountDifference).IsNull())
	assert.Equal(t, "Diferencia Estructural - Gmoney", m.ResultLabel(row.Result))
}

func TestScenarioAggregateDropsUnsharedDates(t *testing.T) {
	m := newMatcher(t)
	a := ledger(op{id: "1", amount: "100", date: "2024-01-01"})
	b := provider(
		op{id: "1", amount: "100", date: "2024-01-01"},
		op{id: "2", amount: "50", date: "2024-01-02"},
	)

	rows, err := m.AggregateByDate(a, b)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-01", rows[0].Date.Text())
	assert.True(t, rows[0].Difference.Decimal.IsZero())
	assert.Equal(t, StateReconciled, rows[0].State)
}

func TestMissingFromLedger(t *testing.T) {
	m := newMatcher(t)
	detail, err := m.MergeDetail(ledger(), provider(op{id: "T4", amount: "7"}), joinKey)
	require.NoError(t, err)
	require.Len(t, detail.Rows, 1)
	assert.Equal(t, ResultStructuralDiffA, detail.Rows[0].Result)
	assert.False(t, detail.Rows[0].AmountA.Valid)
	assert.Equal(t, "Diferencia Estructural - Metabase", m.ResultLabel(ResultStructuralDiffA))
}

func TestAggregateDisjointDatesIsEmpty(t *testing.T) {
	m := newMatcher(t)
	for i := 0; i < 20; i++ {
		var aOps, bOps []op
		nA, nB := gofakeit.IntRange(0, 5), gofakeit.IntRange(0, 5)
		for j := 0; j < nA; j++ {
			aOps = append(aOps, op{id: gofakeit.UUID(), amount: fmt.Sprint(gofakeit.IntRange(1, 999)), date: fmt.Sprintf("2024-01-%02d", gofakeit.IntRange(1, 15))})
		}
		for j := 0; j < nB; j++ {
			bOps = append(bOps, op{id: gofakeit.UUID(), amount: fmt.Sprint(gofakeit.IntRange(1, 999)), date: fmt.Sprintf("2024-01-%02d", gofakeit.IntRange(16, 28))})
		}

		rows, err := m.AggregateByDate(ledger(aOps...), provider(bOps...))
		require.NoError(t, err)
		assert.Empty(t, rows)
	}
}

func TestAggregateSumsAndOrdersByDate(t *testing.T) {
	m := newMatcher(t)
	a := ledger(
		op{id: "1", amount: "10.10", date: "2024-03-02"},
		op{id: "2", amount: "5.00", date: "2024-03-01"},
		op{id: "3", amount: "0.90", date: "2024-03-02"},
	)
	b := provider(
		op{id: "1", amount: "11", date: "2024-03-02"},
		op{id: "2", amount: "6", date: "2024-03-01"},
	)

	rows, err := m.AggregateByDate(a, b)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-03-01", rows[0].Date.Text())
	assert.True(t, rows[0].Difference.Decimal.Equal(decimal.NewFromInt(-1)))
	assert.Equal(t, StateDiscrepant, rows[0].State)

	assert.Equal(t, "2024-03-02", rows[1].Date.Text())
	assert.True(t, rows[1].TotalA.Decimal.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, StateReconciled, rows[1].State)
	assert.Equal(t, 1, Discrepant(rows))
}

func TestAggregateOuterJoinReportsMissingDates(t *testing.T) {
	opts := DefaultOptions()
	opts.AggregateJoin = JoinOuter
	m, err := New(opts)
	require.NoError(t, err)

	a := ledger(op{id: "1", amount: "100", date: "2024-01-01"}, op{id: "3", amount: "1", date: "2024-01-03"})
	b := provider(op{id: "1", amount: "100", date: "2024-01-01"}, op{id: "2", amount: "50", date: "2024-01-02"})

	rows, err := m.AggregateByDate(a, b)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, StateReconciled, rows[0].State)
	assert.Equal(t, StateMissingInA, rows[1].State)
	assert.False(t, rows[1].Difference.Valid)
	assert.Equal(t, StateMissingInB, rows[2].State)
	assert.Equal(t, "Falta en Gmoney", m.StateLabel(rows[2].State))
}

func TestEmptyInputs(t *testing.T) {
	m := newMatcher(t)

	rows, err := m.AggregateByDate(ledger(), provider())
	require.NoError(t, err)
	assert.Empty(t, rows)

	detail, err := m.MergeDetail(ledger(), provider(), joinKey)
	require.NoError(t, err)
	assert.Empty(t, detail.Rows)

	warnings := Warnings(rows, Differences(detail))
	assert.Equal(t, []string{WarnNoOverlappingDates, WarnNoDiscrepancies}, codes(warnings))
}

func TestOKRowsAreExactlyEqualAmounts(t *testing.T) {
	m := newMatcher(t)
	var aOps, bOps []op
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("OP%03d", i)
		amount := decimal.NewFromFloat(gofakeit.Price(1, 500)).StringFixed(2)
		if gofakeit.Bool() {
			aOps = append(aOps, op{id: id, amount: amount})
		}
		if gofakeit.Bool() {
			other := amount
			if gofakeit.Bool() {
				other = decimal.RequireFromString(amount).Add(decimal.New(1, -2)).String()
			}
			bOps = append(bOps, op{id: id, amount: other})
		}
	}

	detail, err := m.MergeDetail(ledger(aOps...), provider(bOps...), joinKey)
	require.NoError(t, err)

	for _, row := range detail.Rows {
		switch row.Side {
		case table.SideLeftOnly:
			assert.Equal(t, ResultStructuralDiffB, row.Result)
			assert.False(t, row.AmountDifference.Valid)
		case table.SideRightOnly:
			assert.Equal(t, ResultStructuralDiffA, row.Result)
			assert.False(t, row.AmountDifference.Valid)
		case table.SideBoth:
			if row.AmountA.Decimal.Equal(row.AmountB.Decimal) {
				assert.Equal(t, ResultOK, row.Result)
			} else {
				assert.Equal(t, ResultAmountMismatch, row.Result)
			}
		default:
			t.Fatalf("unexpected merge side %q", row.Side)
		}
	}

	// Row count invariant: one row per key in A ∪ B.
	keys := map[string]bool{}
	for _, o := range aOps {
		keys[o.id] = true
	}
	for _, o := range bOps {
		keys[o.id] = true
	}
	assert.Len(t, detail.Rows, len(keys))
}

func TestMergeDetailIsIdempotent(t *testing.T) {
	m := newMatcher(t)
	a := ledger(op{id: "B", amount: "2"}, op{id: "A", amount: "1"}, op{id: "C", amount: "3.5"})
	b := provider(op{id: "C", amount: "3.4"}, op{id: "D", amount: "9"}, op{id: "A", amount: "1.00"})

	first, err := m.MergeDetail(a, b, joinKey)
	require.NoError(t, err)
	second, err := m.MergeDetail(a, b, joinKey)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first.Rows)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Rows)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	assert.Equal(t, first.Table.Columns(), second.Table.Columns())
	var ids []string
	for _, r := range first.Rows {
		ids = append(ids, r.Key.Str())
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids)
}

func TestMergeDetailColumns(t *testing.T) {
	m := newMatcher(t)
	detail, err := m.MergeDetail(ledger(op{id: "A", amount: "1"}), provider(op{id: "A", amount: "1"}), joinKey)
	require.NoError(t, err)

	assert.Equal(t, []string{
		joinKey, "total", "fecha_meta", "monto_gmoney", "fecha_gmoney", "_merge", ColumnResult, ColumnAmountDifference,
	}, detail.Table.Columns())
	assert.Equal(t, string(ResultOK), detail.Rows[0].Record.Get(ColumnResult).Str())
}

func TestMergeDetailSharedAmountColumnIsSuffixed(t *testing.T) {
	opts := DefaultOptions()
	opts.B.AmountColumn = "total"
	m, err := New(opts)
	require.NoError(t, err)

	a := ledger(op{id: "A", amount: "10"})
	b := build([]string{joinKey, "total", "fecha"}, []op{{id: "A", amount: "12"}})

	detail, err := m.MergeDetail(a, b, joinKey)
	require.NoError(t, err)
	assert.True(t, detail.Table.Has("total_meta"))
	assert.True(t, detail.Table.Has("total_gmoney"))
	assert.True(t, detail.Rows[0].AmountDifference.Decimal.Equal(decimal.NewFromInt(-2)))
}

func TestDifferencesTable(t *testing.T) {
	m := newMatcher(t)
	detail, err := m.MergeDetail(
		ledger(op{id: "A", amount: "1"}, op{id: "B", amount: "2"}),
		provider(op{id: "A", amount: "1"}, op{id: "C", amount: "3"}),
		joinKey,
	)
	require.NoError(t, err)

	diffs := DifferencesTable(detail)
	assert.Equal(t, 2, diffs.Len())
	assert.Equal(t, len(Differences(detail)), diffs.Len())
	assert.Equal(t, detail.Table.Columns(), diffs.Columns())
}

func TestSchemaErrors(t *testing.T) {
	m := newMatcher(t)
	noKey := table.MustNew([]string{"total", "fecha"}, nil)
	noDate := table.MustNew([]string{joinKey, "monto_gmoney"}, nil)
	badAmount := table.MustNew([]string{joinKey, "total", "fecha"}, [][]table.Value{
		{table.String("A"), table.String("12,5"), table.String("2024-01-01")},
	})

	tests := []struct {
		name   string
		run    func() error
		source string
		column string
	}{
		{
			name: "merge without join key",
			run: func() error {
				_, err := m.MergeDetail(noKey, provider(), joinKey)
				return err
			},
			source: "metabase", column: joinKey,
		},
		{
			name: "aggregate without date",
			run: func() error {
				_, err := m.AggregateByDate(ledger(), noDate)
				return err
			},
			source: "gmoney", column: "fecha",
		},
		{
			name: "merge with text amount",
			run: func() error {
				_, err := m.MergeDetail(badAmount, provider(), joinKey)
				return err
			},
			source: "metabase", column: "total",
		},
		{
			name: "aggregate with text amount",
			run: func() error {
				_, err := m.AggregateByDate(badAmount, provider())
				return err
			},
			source: "metabase", column: "total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, table.ErrSchema))

			var se *table.SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.source, se.Source)
			assert.Equal(t, tt.column, se.Column)
		})
	}
}

func TestInputsAreNotModified(t *testing.T) {
	m := newMatcher(t)
	a := ledger(op{id: "A", amount: "1"})
	b := provider(op{id: "B", amount: "2"})

	_, err := m.MergeDetail(a, b, joinKey)
	require.NoError(t, err)
	_, err = m.AggregateByDate(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{joinKey, "total", "fecha"}, a.Columns())
	assert.Equal(t, []string{joinKey, "monto_gmoney", "fecha"}, b.Columns())
}

func TestOptionsValidation(t *testing.T) {
	opts := DefaultOptions()
	opts.B.Suffix = opts.A.Suffix
	_, err := New(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.AggregateJoin = "left"
	_, err = New(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.A.AmountColumn = ""
	_, err = New(opts)
	assert.Error(t, err)
}

func codes(ws []Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

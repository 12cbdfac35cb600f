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

package ingest

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Dussand/conciliacion-Gmoney/table"
)

// SourceSpec describes how a raw export becomes a table the matcher accepts.
type SourceSpec struct {
	Name         string `json:"name"`
	IDColumn     string `json:"id_column"`
	AmountColumn string `json:"amount_column"`
	// DateColumn holds the operation date. When TimestampColumn is set it is derived
	// from the timestamp instead of read from the file.
	DateColumn      string   `json:"date_column"`
	TimestampColumn string   `json:"timestamp_column"`
	HourColumn      string   `json:"hour_column"`
	StatusColumn    string   `json:"status_column"`
	SettledStatuses []string `json:"settled_statuses"`
	TextColumns     []string `json:"text_columns"`
	DropColumns     []string `json:"drop_columns"`
	// ApplyWindow keeps only operations whose timestamp falls in the run's window.
	ApplyWindow bool `json:"apply_window"`
}

// LedgerSpec is the Metabase operations export.
func LedgerSpec() SourceSpec {
	return SourceSpec{
		Name:            "metabase",
		IDColumn:        "numero_operacion",
		AmountColumn:    "total",
		DateColumn:      "fecha",
		TimestampColumn: "creacion_deuda_fecha_peru",
		HourColumn:      "hora",
		StatusColumn:    "estado",
		SettledStatuses: []string{"Pagado"},
		TextColumns:     []string{"numero_documento"},
		DropColumns: []string{
			"cus_public_id", "category", "po_public_id", "po_referencia",
			"referencia", "debtor_public_id", "cuenta", "tipo_de_cuenta",
		},
		ApplyWindow: true,
	}
}

// ProviderSpec is the GMoney movements workbook.
func ProviderSpec() SourceSpec {
	return SourceSpec{
		Name:            "gmoney",
		IDColumn:        "id_transaccion_cce",
		AmountColumn:    "monto_gmoney",
		DateColumn:      "fecha",
		StatusColumn:    "estado",
		SettledStatuses: []string{"A"},
	}
}

func (s SourceSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.IDColumn, validation.Required),
		validation.Field(&s.AmountColumn, validation.Required),
		validation.Field(&s.DateColumn, validation.Required),
		validation.Field(&s.HourColumn, validation.When(s.HourColumn != "", validation.NotIn(s.DateColumn))),
		validation.Field(&s.StatusColumn, validation.Required),
		validation.Field(&s.SettledStatuses, validation.Required),
		validation.Field(&s.ApplyWindow, validation.When(s.ApplyWindow && s.TimestampColumn == "", validation.Empty.Error("requires timestamp_column"))),
	)
}

// Options carries the per-run inputs of Normalize.
type Options struct {
	// JoinKey replaces the source's id column name.
	JoinKey string
	// Location interprets timestamps that carry no zone.
	Location *time.Location
	// Window filters timestamps when the spec applies it. Nil disables the filter.
	Window *Window
}

// Normalize turns a decoded export into matcher input: required columns are checked,
// administrative columns dropped, unsettled rows removed, amounts coerced to decimals,
// dates derived, the window applied and the id column renamed to the join key.
// Every failure is a *table.SchemaError tagged with the source name.
func Normalize(t *table.Table, spec SourceSpec, opts Options) (*table.Table, error) {
	out, err := normalize(t, spec, opts)
	if err != nil {
		return nil, table.WithSource(err, spec.Name)
	}
	return out, nil
}

func normalize(t *table.Table, spec SourceSpec, opts Options) (*table.Table, error) {
	required := []string{spec.IDColumn, spec.AmountColumn, spec.StatusColumn}
	if spec.TimestampColumn != "" {
		required = append(required, spec.TimestampColumn)
	} else {
		required = append(required, spec.DateColumn)
	}
	if err := t.Require(required...); err != nil {
		return nil, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	settled := make(map[string]bool, len(spec.SettledStatuses))
	for _, s := range spec.SettledStatuses {
		settled[s] = true
	}

	out := t.Drop(spec.DropColumns...).Filter(func(r table.Record) bool {
		return settled[strings.TrimSpace(r.Get(spec.StatusColumn).Text())]
	})

	out, err := out.WithColumn(spec.AmountColumn, func(r table.Record) (table.Value, error) {
		return parseAmount(r.Get(spec.AmountColumn), spec.AmountColumn, r.Position())
	})
	if err != nil {
		return nil, err
	}

	out, err = out.WithColumn(spec.IDColumn, func(r table.Record) (table.Value, error) {
		v := r.Get(spec.IDColumn)
		if v.IsNull() {
			return v, &table.SchemaError{Column: spec.IDColumn, Row: r.Position() + 1, Reason: "missing value"}
		}
		return table.String(strings.TrimSpace(v.Text())), nil
	})
	if err != nil {
		return nil, err
	}

	if spec.TimestampColumn != "" {
		out, err = out.WithColumn(spec.TimestampColumn, func(r table.Record) (table.Value, error) {
			ts, err := parseTimeCell(r.Get(spec.TimestampColumn), spec.TimestampColumn, r.Position(), loc)
			if err != nil {
				return table.Null(), err
			}
			return table.Time(ts), nil
		})
		if err != nil {
			return nil, err
		}

		if spec.ApplyWindow && opts.Window != nil {
			w := *opts.Window
			out = out.Filter(func(r table.Record) bool {
				return w.Contains(r.Get(spec.TimestampColumn).Time())
			})
		}

		out, err = out.WithColumn(spec.DateColumn, func(r table.Record) (table.Value, error) {
			return table.Date(r.Get(spec.TimestampColumn).Time()), nil
		})
		if err != nil {
			return nil, err
		}
		if spec.HourColumn != "" {
			out, err = out.WithColumn(spec.HourColumn, func(r table.Record) (table.Value, error) {
				return table.Decimal(decimal.NewFromInt(int64(r.Get(spec.TimestampColumn).Time().Hour()))), nil
			})
			if err != nil {
				return nil, err
			}
		}
	} else {
		out, err = out.WithColumn(spec.DateColumn, func(r table.Record) (table.Value, error) {
			ts, err := parseTimeCell(r.Get(spec.DateColumn), spec.DateColumn, r.Position(), loc)
			if err != nil {
				return table.Null(), err
			}
			return table.Date(ts), nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, c := range spec.TextColumns {
		if !out.Has(c) {
			continue
		}
		col := c
		out, err = out.WithColumn(col, func(r table.Record) (table.Value, error) {
			v := r.Get(col)
			if v.IsNull() {
				return v, nil
			}
			return table.String(v.Text()), nil
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.JoinKey != "" && opts.JoinKey != spec.IDColumn {
		return out.Rename(map[string]string{spec.IDColumn: opts.JoinKey})
	}
	return out, nil
}

func parseAmount(v table.Value, column string, pos int) (table.Value, error) {
	if _, ok := v.Dec(); ok {
		return v, nil
	}
	if v.IsNull() {
		return v, &table.SchemaError{Column: column, Row: pos + 1, Reason: "missing value"}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.Text()))
	if err != nil {
		return v, &table.SchemaError{Column: column, Row: pos + 1, Reason: "not a number: " + strconv.Quote(v.Text())}
	}
	return table.Decimal(d), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"20060102",
}

func parseTimeCell(v table.Value, column string, pos int, loc *time.Location) (time.Time, error) {
	switch v.Kind() {
	case table.KindTime:
		return v.Time(), nil
	case table.KindNull:
		return time.Time{}, &table.SchemaError{Column: column, Row: pos + 1, Reason: "missing value"}
	}

	s := strings.TrimSpace(v.Text())
	if ts, ok := parseTime(s, loc); ok {
		return ts, nil
	}
	return time.Time{}, &table.SchemaError{Column: column, Row: pos + 1, Reason: "not a date: " + strconv.Quote(s)}
}

// parseTime accepts the common text layouts and spreadsheet serial dates. Values
// without a zone are read in loc.
func parseTime(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}

	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 0 {
		return time.Time{}, false
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), loc), true
}

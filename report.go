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

package conciliacion

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Dussand/conciliacion-Gmoney/internal/apierror"
	"github.com/Dussand/conciliacion-Gmoney/internal/cache"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

const (
	summarySheet     = "Resumen"
	differencesSheet = "Diferencias"
)

func reportKey(runID string) string {
	return "report:" + runID
}

func (c *Conciliacion) reportTTL() time.Duration {
	return time.Duration(c.cnf.Report.CacheTTLSec) * time.Second
}

// GetRun retrieves the summary of a run.
func (c *Conciliacion) GetRun(ctx context.Context, id string) (*model.Run, error) {
	return c.datasource.GetRun(ctx, id)
}

// ListRuns returns runs newest first, only the operator's when operator is set.
func (c *Conciliacion) ListRuns(ctx context.Context, operator string, limit, offset int) ([]*model.Run, error) {
	if operator != "" {
		return c.datasource.ListRunsByOperator(ctx, operator, limit, offset)
	}
	return c.datasource.ListRuns(ctx, limit, offset)
}

// GetReport returns the cached report of a run. Reports outlive their cache entry
// only as run summaries, so an expired report is not found even though the run is.
func (c *Conciliacion) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	err := c.cache.Get(ctx, reportKey(id), &report)
	if err == nil {
		return &report, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, err
	}

	if _, err := c.datasource.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "Report expired; run the reconciliation again", nil)
}

// ExportReport renders a run's report as a workbook with a summary sheet and a
// discrepancy sheet.
func (c *Conciliacion) ExportReport(ctx context.Context, id string) ([]byte, error) {
	_, span := tracer.Start(ctx, "Export report")
	defer span.End()

	report, err := c.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Workbook(report)
}

// Workbook renders report as xlsx. Amount columns of the discrepancy sheet are
// written as numbers.
func (c *Conciliacion) Workbook(report *model.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	opts := c.matcher.Options()
	header := []interface{}{"fecha", "total_" + opts.A.Name, "total_" + opts.B.Name, "diferencias", "estado"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, cmp := range report.Run.Comparisons {
		row := []interface{}{cmp.Date, numberCell(cmp.TotalLedger), numberCell(cmp.TotalProvider), numberCell(cmp.Difference), cmp.State}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(differencesSheet); err != nil {
		return nil, err
	}
	view := report.Differences
	columns := make([]interface{}, len(view.Columns))
	for i, col := range view.Columns {
		columns[i] = col
	}
	if err := f.SetSheetRow(differencesSheet, "A1", &columns); err != nil {
		return nil, err
	}

	amount := make(map[string]bool, len(view.AmountColumns))
	for _, col := range view.AmountColumns {
		amount[col] = true
	}
	for i, cells := range view.Rows {
		row := make([]interface{}, len(cells))
		for j, cell := range cells {
			row[j] = cell
			text, ok := cell.(string)
			if !ok || j >= len(view.Columns) || !amount[view.Columns[j]] {
				continue
			}
			if d, err := decimal.NewFromString(text); err == nil {
				row[j] = d.InexactFloat64()
			}
		}
		if err := setRow(f, differencesSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func numberCell(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

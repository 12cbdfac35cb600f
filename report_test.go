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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Dussand/conciliacion-Gmoney/internal/apierror"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

func TestGetReport_Expired(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ds.On("GetRun", mock.Anything, "run_old").Return(&model.Run{RunID: "run_old", Status: model.RunStatusCompleted}, nil)

	_, err := env.c.GetReport(context.Background(), "run_old")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
	assert.Contains(t, apiErr.Message, "expired")
}

func TestGetReport_UnknownRun(t *testing.T) {
	env := newTestEnv(t, nil)
	notFound := apierror.NewAPIError(apierror.ErrNotFound, "run with ID 'run_x' not found", nil)
	env.ds.On("GetRun", mock.Anything, "run_x").Return(nil, notFound)

	_, err := env.c.GetReport(context.Background(), "run_x")
	assert.Equal(t, notFound, err)
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	all := []*model.Run{{RunID: "run_1"}, {RunID: "run_2"}}
	mine := []*model.Run{{RunID: "run_2", Operator: "ana"}}
	env.ds.On("ListRuns", mock.Anything, 20, 0).Return(all, nil)
	env.ds.On("ListRunsByOperator", mock.Anything, "ana", 20, 0).Return(mine, nil)

	runs, err := env.c.ListRuns(ctx, "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = env.c.ListRuns(ctx, "ana", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, mine, runs)
}

func TestExportReport(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	amount := func(s string) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}
	report := &model.Report{
		Run: model.Run{
			RunID: "run_export",
			Comparisons: []model.Comparison{
				{Date: "2024-01-02", TotalLedger: amount("50"), TotalProvider: amount("55"), Difference: amount("-5"), State: "Diferencias"},
			},
		},
		Differences: model.DiscrepancyView{
			Columns:       []string{"id_operacion", "total", "resultado"},
			AmountColumns: []string{"total"},
			Rows: [][]interface{}{
				{"OP2", "50.5", "Diferencia Importe"},
				{"OP5", nil, "Diferencia Estructural - Metabase"},
			},
		},
	}
	require.NoError(t, env.cache.Set(ctx, reportKey("run_export"), report, time.Minute))

	data, err := env.c.ExportReport(ctx, "run_export")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, differencesSheet}, f.GetSheetList())

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"fecha", "total_metabase", "total_gmoney", "diferencias", "estado"}, summary[0])
	assert.Equal(t, []string{"2024-01-02", "50", "55", "-5", "Diferencias"}, summary[1])

	diffs, err := f.GetRows(differencesSheet)
	require.NoError(t, err)
	require.Len(t, diffs, 3)
	assert.Equal(t, []string{"OP2", "50.5", "Diferencia Importe"}, diffs[1])
	assert.Equal(t, []string{"OP5", "", "Diferencia Estructural - Metabase"}, diffs[2])

	cellType, err := f.GetCellType(differencesSheet, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
}

func TestReportTTL(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, 24*time.Hour, env.c.reportTTL())
}

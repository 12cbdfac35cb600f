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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dussand/conciliacion-Gmoney/internal/apierror"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

var runRowColumns = []string{
	"id", "run_id", "operator", "status", "ledger_file", "provider_file", "ledger_rows",
	"provider_rows", "compared_dates", "discrepant_dates", "discrepancy_count", "window_start",
	"window_end", "error", "comparisons", "started_at", "completed_at",
}

func sampleRun() *model.Run {
	started := time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)
	return &model.Run{
		RunID:        "run_123",
		Operator:     "operador1",
		Status:       model.RunStatusRunning,
		LedgerFile:   "metabase.xlsx",
		ProviderFile: "gmoney.txt",
		Window: &model.Window{
			Start: time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC),
		},
		StartedAt: started,
	}
}

func comparisonsJSON(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal([]model.Comparison{{
		Date:          "2024-03-04",
		TotalLedger:   decimal.NewNullDecimal(decimal.RequireFromString("100")),
		TotalProvider: decimal.NewNullDecimal(decimal.RequireFromString("90")),
		Difference:    decimal.NewNullDecimal(decimal.RequireFromString("10")),
		State:         "Diferencias",
	}})
	require.NoError(t, err)
	return data
}

func TestRecordRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	run := sampleRun()

	mock.ExpectExec("INSERT INTO conciliacion.runs").
		WithArgs(run.RunID, run.Operator, run.Status, run.LedgerFile, run.ProviderFile, 0,
			0, 0, 0, 0, run.Window.Start, run.Window.End, "", []byte("[]"), run.StartedAt, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordRun(context.Background(), run)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_Conflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO conciliacion.runs").
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	err = ds.RecordRun(context.Background(), sampleRun())
	var apiErr apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestUpdateRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	run := sampleRun()
	run.LedgerRows, run.ProviderRows, run.DiscrepancyCount = 10, 9, 1
	run.Complete(run.StartedAt.Add(time.Second))

	mock.ExpectExec("UPDATE conciliacion.runs").
		WithArgs(run.RunID, model.RunStatusCompleted, 10, 9, 0, 0, 1,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", []byte("[]"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.UpdateRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRun_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE conciliacion.runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateRun(context.Background(), sampleRun())
	assert.Equal(t, 404, apierror.MapErrorToHTTPStatus(err))
}

func TestGetRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	run := sampleRun()
	completed := run.StartedAt.Add(2 * time.Second)

	rows := sqlmock.NewRows(runRowColumns).AddRow(
		int64(7), run.RunID, run.Operator, "completed", run.LedgerFile, run.ProviderFile, 10,
		9, 1, 1, 1, run.Window.Start, run.Window.End, nil, comparisonsJSON(t), run.StartedAt, completed,
	)
	mock.ExpectQuery("SELECT (.+) FROM conciliacion.runs WHERE run_id = \\$1").
		WithArgs(run.RunID).
		WillReturnRows(rows)

	got, err := ds.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 10, got.LedgerRows)
	require.NotNil(t, got.Window)
	assert.Equal(t, run.Window.Start, got.Window.Start)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, completed, *got.CompletedAt)
	assert.Empty(t, got.Error)
	require.Len(t, got.Comparisons, 1)
	assert.Equal(t, "2024-03-04", got.Comparisons[0].Date)
	assert.True(t, got.Comparisons[0].Difference.Decimal.Equal(decimal.NewFromInt(10)))
}

func TestGetRun_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM conciliacion.runs WHERE run_id = \\$1").
		WithArgs("run_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetRun(context.Background(), "run_missing")
	var apiErr apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestListRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows(runRowColumns).
		AddRow(int64(2), "run_2", "ana", "failed", "a.xlsx", "b.xlsx", 0, 0, 0, 0, 0, nil, nil, "missing column", []byte("[]"), now, now).
		AddRow(int64(1), "run_1", "ana", "completed", "a.xlsx", "b.xlsx", 3, 3, 1, 0, 0, nil, nil, nil, []byte("[]"), now.Add(-time.Hour), nil)
	mock.ExpectQuery("SELECT (.+) FROM conciliacion.runs ORDER BY started_at DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(20, 0).
		WillReturnRows(rows)

	runs, err := ds.ListRuns(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_2", runs[0].RunID)
	assert.Equal(t, "missing column", runs[0].Error)
	assert.Nil(t, runs[0].Window)
	assert.Nil(t, runs[1].CompletedAt)
	assert.Empty(t, runs[1].Comparisons)
}

func TestListRunsByOperator_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM conciliacion.runs WHERE operator = \\$1").
		WithArgs("nadie", 10, 5).
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	runs, err := ds.ListRunsByOperator(context.Background(), "nadie", 10, 5)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestListRuns_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM conciliacion.runs").WillReturnError(errors.New("connection lost"))

	_, err = ds.ListRuns(context.Background(), 20, 0)
	assert.Equal(t, 500, apierror.MapErrorToHTTPStatus(err))
}

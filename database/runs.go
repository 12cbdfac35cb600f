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

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/Dussand/conciliacion-Gmoney/internal/apierror"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

const runColumns = `id, run_id, operator, status, ledger_file, provider_file, ledger_rows,
	provider_rows, compared_dates, discrepant_dates, discrepancy_count, window_start,
	window_end, error, comparisons, started_at, completed_at`

// RecordRun inserts a new run.
func (d Datasource) RecordRun(ctx context.Context, run *model.Run) error {
	ctx, span := otel.Tracer("Runs").Start(ctx, "Saving run to db")
	defer span.End()

	comparisons, err := marshalComparisons(run.Comparisons)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Failed to marshal comparisons", err)
	}
	windowStart, windowEnd := windowBounds(run.Window)

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO conciliacion.runs(
			run_id, operator, status, ledger_file, provider_file, ledger_rows,
			provider_rows, compared_dates, discrepant_dates, discrepancy_count,
			window_start, window_end, error, comparisons, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		run.RunID, run.Operator, run.Status, run.LedgerFile, run.ProviderFile, run.LedgerRows,
		run.ProviderRows, run.ComparedDates, run.DiscrepantDates, run.DiscrepancyCount,
		windowStart, windowEnd, run.Error, comparisons, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apierror.NewAPIError(apierror.ErrConflict, "Run already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record run", err)
	}
	return nil
}

// UpdateRun saves status, counts, comparisons and completion of a recorded run.
func (d Datasource) UpdateRun(ctx context.Context, run *model.Run) error {
	ctx, span := otel.Tracer("Runs").Start(ctx, "Updating run")
	defer span.End()

	comparisons, err := marshalComparisons(run.Comparisons)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Failed to marshal comparisons", err)
	}
	windowStart, windowEnd := windowBounds(run.Window)

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE conciliacion.runs
		SET status = $2, ledger_rows = $3, provider_rows = $4, compared_dates = $5,
			discrepant_dates = $6, discrepancy_count = $7, window_start = $8, window_end = $9,
			error = $10, comparisons = $11, completed_at = $12
		WHERE run_id = $1
	`, run.RunID, run.Status, run.LedgerRows, run.ProviderRows, run.ComparedDates,
		run.DiscrepantDates, run.DiscrepancyCount, windowStart, windowEnd,
		run.Error, comparisons, run.CompletedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update run", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update run", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Run not found", nil)
	}
	return nil
}

// GetRun retrieves a run by its ID.
func (d Datasource) GetRun(ctx context.Context, id string) (*model.Run, error) {
	ctx, span := otel.Tracer("Runs").Start(ctx, "Fetching run from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+runColumns+`
		FROM conciliacion.runs
		WHERE run_id = $1
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Run not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve run", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (d Datasource) ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	ctx, span := otel.Tracer("Runs").Start(ctx, "Listing runs")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+runColumns+`
		FROM conciliacion.runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list runs", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRunsByOperator returns the runs started by operator, newest first.
func (d Datasource) ListRunsByOperator(ctx context.Context, operator string, limit, offset int) ([]*model.Run, error) {
	ctx, span := otel.Tracer("Runs").Start(ctx, "Listing runs by operator")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+runColumns+`
		FROM conciliacion.runs
		WHERE operator = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, operator, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list runs", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]*model.Run, error) {
	runs := []*model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list runs", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*model.Run, error) {
	run := &model.Run{}
	var (
		windowStart, windowEnd, completedAt sql.NullTime
		errText                             sql.NullString
		comparisons                         []byte
	)
	err := s.Scan(
		&run.ID, &run.RunID, &run.Operator, &run.Status, &run.LedgerFile, &run.ProviderFile,
		&run.LedgerRows, &run.ProviderRows, &run.ComparedDates, &run.DiscrepantDates,
		&run.DiscrepancyCount, &windowStart, &windowEnd, &errText, &comparisons,
		&run.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if windowStart.Valid && windowEnd.Valid {
		run.Window = &model.Window{Start: windowStart.Time, End: windowEnd.Time}
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errText.String
	if len(comparisons) > 0 {
		if err := json.Unmarshal(comparisons, &run.Comparisons); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func marshalComparisons(c []model.Comparison) ([]byte, error) {
	if c == nil {
		c = []model.Comparison{}
	}
	return json.Marshal(c)
}

func windowBounds(w *model.Window) (sql.NullTime, sql.NullTime) {
	if w == nil {
		return sql.NullTime{}, sql.NullTime{}
	}
	return sql.NullTime{Time: w.Start, Valid: true}, sql.NullTime{Time: w.End, Valid: true}
}

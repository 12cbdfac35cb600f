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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Dussand/conciliacion-Gmoney/ingest"
	"github.com/Dussand/conciliacion-Gmoney/internal/apierror"
	redlock "github.com/Dussand/conciliacion-Gmoney/internal/lock"
	"github.com/Dussand/conciliacion-Gmoney/internal/notification"
	"github.com/Dussand/conciliacion-Gmoney/matcher"
	"github.com/Dussand/conciliacion-Gmoney/model"
	"github.com/Dussand/conciliacion-Gmoney/table"
)

const operatorLockTTL = 10 * time.Minute

// RunInput carries the two uploads of one reconciliation.
type RunInput struct {
	Operator     string
	LedgerFile   string
	Ledger       io.Reader
	ProviderFile string
	Provider     io.Reader
}

// Outcome is the in-memory result of matching two uploads.
type Outcome struct {
	Window       ingest.Window
	LedgerRows   int
	ProviderRows int
	Comparisons  []matcher.ComparisonRow
	Detail       *matcher.Detail
	Differences  []matcher.DetailRow
	Warnings     []matcher.Warning
}

// Compare decodes and normalizes both uploads and runs the matcher. Nothing is stored.
func (c *Conciliacion) Compare(ctx context.Context, in RunInput) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "Compare")
	defer span.End()

	window := c.policy.WindowFor(c.now())
	opts := ingest.Options{
		JoinKey:  c.cnf.Reconciliation.JoinKey,
		Location: c.policy.Location,
		Window:   &window,
	}

	ledger, err := c.load(ctx, c.ledger, in.LedgerFile, in.Ledger, opts)
	if err != nil {
		return nil, err
	}
	provider, err := c.load(ctx, c.provider, in.ProviderFile, in.Provider, opts)
	if err != nil {
		return nil, err
	}

	_, matchSpan := tracer.Start(ctx, "Match")
	defer matchSpan.End()

	comparisons, err := c.matcher.AggregateByDate(ledger, provider)
	if err != nil {
		return nil, err
	}
	detail, err := c.matcher.MergeDetail(ledger, provider, opts.JoinKey)
	if err != nil {
		return nil, err
	}
	differences := matcher.Differences(detail)

	matchSpan.SetAttributes(
		attribute.Int("conciliacion.compared_dates", len(comparisons)),
		attribute.Int("conciliacion.discrepancies", len(differences)),
	)

	return &Outcome{
		Window:       window,
		LedgerRows:   ledger.Len(),
		ProviderRows: provider.Len(),
		Comparisons:  comparisons,
		Detail:       detail,
		Differences:  differences,
		Warnings:     matcher.Warnings(comparisons, differences),
	}, nil
}

// load reads one upload. Plain text provider exports go through the converter first.
func (c *Conciliacion) load(ctx context.Context, spec ingest.SourceSpec, filename string, r io.Reader, opts ingest.Options) (*table.Table, error) {
	ctx, span := tracer.Start(ctx, "Load "+spec.Name)
	defer span.End()

	if r == nil {
		return nil, fmt.Errorf("%s: no file was uploaded", spec.Name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: error reading upload: %w", spec.Name, err)
	}

	header := data
	if len(header) > 512 {
		header = header[:512]
	}
	format, err := ingest.DetectFormat(header, filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}
	span.SetAttributes(attribute.String("conciliacion.format", string(format)))

	var raw *table.Table
	if format == ingest.FormatText {
		raw, err = c.converter.ConvertTable(ctx, filename, bytes.NewReader(data))
	} else {
		raw, err = ingest.Decode(bytes.NewReader(data), filename)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}

	out, err := ingest.Normalize(raw, spec, opts)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"source":   spec.Name,
		"file":     filename,
		"raw_rows": raw.Len(),
		"rows":     out.Len(),
	}).Info("source loaded")
	return out, nil
}

// Reconcile runs a full reconciliation: both uploads are compared, the run summary is
// stored, the per-date summaries are queued for the logging webhook and the report
// is cached for later lookup and export. Failing to queue or cache is logged and
// does not fail the run.
func (c *Conciliacion) Reconcile(ctx context.Context, in RunInput) (*model.Report, error) {
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()

	run := c.newRun(in)
	span.SetAttributes(attribute.String("conciliacion.run_id", run.RunID))

	release, err := c.lockOperator(ctx, run)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.datasource.RecordRun(ctx, run); err != nil {
		return nil, err
	}

	result, err := c.Compare(ctx, in)
	if err != nil {
		c.failRun(ctx, span, run, err)
		return nil, err
	}

	c.summarize(run, result)
	run.Complete(c.now())
	if err := c.datasource.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	report := c.buildReport(run, result)

	c.publishSummaries(ctx, run)
	if err := c.cache.Set(ctx, reportKey(run.RunID), report, c.reportTTL()); err != nil {
		logrus.WithFields(logrus.Fields{"run_id": run.RunID, "error": err}).Warn("failed to cache report")
	}

	logrus.WithFields(logrus.Fields{
		"run_id":        run.RunID,
		"operator":      run.Operator,
		"dates":         run.ComparedDates,
		"discrepancies": run.DiscrepancyCount,
	}).Info("reconciliation completed")
	return report, nil
}

// lockOperator keeps an operator from running two reconciliations at once. The
// lock expires on its own if the process dies mid-run.
func (c *Conciliacion) lockOperator(ctx context.Context, run *model.Run) (func(), error) {
	if c.locks == nil {
		return func() {}, nil
	}
	locker := redlock.NewLocker(c.locks, operatorLockKey(run.Operator), run.RunID)
	if err := locker.Lock(ctx, operatorLockTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("a reconciliation by %s is already running", run.Operator), nil)
		}
		return nil, err
	}
	return func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.WithFields(logrus.Fields{"run_id": run.RunID, "error": err}).Warn("failed to release operator lock")
		}
	}, nil
}

func operatorLockKey(operator string) string {
	return "conciliacion:lock:" + operator
}

// Preview compares the uploads and builds their report without storing, caching
// or publishing anything.
func (c *Conciliacion) Preview(ctx context.Context, in RunInput) (*model.Report, error) {
	run := c.newRun(in)
	result, err := c.Compare(ctx, in)
	if err != nil {
		return nil, err
	}
	c.summarize(run, result)
	run.Complete(c.now())
	return c.buildReport(run, result), nil
}

func (c *Conciliacion) newRun(in RunInput) *model.Run {
	return &model.Run{
		RunID:        model.GenerateUUIDWithSuffix("run"),
		Operator:     in.Operator,
		Status:       model.RunStatusRunning,
		LedgerFile:   in.LedgerFile,
		ProviderFile: in.ProviderFile,
		StartedAt:    c.now(),
	}
}

func (c *Conciliacion) buildReport(run *model.Run, result *Outcome) *model.Report {
	return &model.Report{
		Run:         *run,
		Warnings:    reportWarnings(result.Warnings),
		Differences: c.discrepancyView(result.Detail),
	}
}

func (c *Conciliacion) failRun(ctx context.Context, span trace.Span, run *model.Run, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	run.Fail(c.now(), err)
	if updateErr := c.datasource.UpdateRun(ctx, run); updateErr != nil {
		logrus.WithFields(logrus.Fields{"run_id": run.RunID, "error": updateErr}).Error("failed to record run failure")
	}

	// Bad uploads are the operator's to fix; anything else is reported.
	if errors.Is(err, table.ErrSchema) || errors.Is(err, ingest.ErrUnsupportedFormat) {
		logrus.WithFields(logrus.Fields{"run_id": run.RunID, "error": err}).Warn("reconciliation rejected")
		return
	}
	notification.NotifyError(fmt.Errorf("reconciliation %s failed: %w", run.RunID, err))
}

func (c *Conciliacion) summarize(run *model.Run, result *Outcome) {
	run.Window = &model.Window{Start: result.Window.Start, End: result.Window.End}
	run.LedgerRows = result.LedgerRows
	run.ProviderRows = result.ProviderRows
	run.ComparedDates = len(result.Comparisons)
	run.DiscrepantDates = matcher.Discrepant(result.Comparisons)
	run.DiscrepancyCount = len(result.Differences)
	run.Comparisons = make([]model.Comparison, len(result.Comparisons))
	for i, row := range result.Comparisons {
		run.Comparisons[i] = model.Comparison{
			Date:          row.Date.Time().Format(model.DateLayout),
			TotalLedger:   row.TotalA,
			TotalProvider: row.TotalB,
			Difference:    row.Difference,
			State:         c.matcher.StateLabel(row.State),
			Reconciled:    row.State == matcher.StateReconciled,
		}
	}
}

// discrepancyView renders the non-OK rows for operators: administrative columns
// are dropped and results carry their labels.
func (c *Conciliacion) discrepancyView(d *matcher.Detail) model.DiscrepancyView {
	diffs := matcher.DifferencesTable(d).Drop(c.cnf.Reconciliation.ReportDropColumns...)

	view := model.DiscrepancyView{
		Columns:       diffs.Columns(),
		AmountColumns: []string{},
		Rows:          make([][]interface{}, 0, diffs.Len()),
	}
	for _, col := range diffs.Columns() {
		if col != d.JoinKey && decimalColumn(diffs, col) {
			view.AmountColumns = append(view.AmountColumns, col)
		}
	}

	for _, r := range diffs.Records() {
		cells := make([]interface{}, 0, len(view.Columns))
		for _, col := range view.Columns {
			v := r.Get(col)
			switch {
			case v.IsNull():
				cells = append(cells, nil)
			case col == matcher.ColumnResult:
				cells = append(cells, c.matcher.ResultLabel(matcher.Result(v.Str())))
			default:
				cells = append(cells, v.Text())
			}
		}
		view.Rows = append(view.Rows, cells)
	}
	return view
}

// decimalColumn reports whether every non-null cell of col is a decimal.
func decimalColumn(t *table.Table, col string) bool {
	values, err := t.Column(col)
	if err != nil {
		return false
	}
	seen := false
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if v.Kind() != table.KindDecimal {
			return false
		}
		seen = true
	}
	return seen
}

func reportWarnings(ws []matcher.Warning) []model.Warning {
	out := make([]model.Warning, len(ws))
	for i, w := range ws {
		out[i] = model.Warning{Code: w.Code, Message: w.Message}
	}
	return out
}

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

package model

import (
	"time"
)

type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DiscrepancyView is the operator-facing discrepancy report: every operation that
// is not OK, with administrative columns removed. Cells are nil or text.
type DiscrepancyView struct {
	Columns []string `json:"columns"`
	// AmountColumns are exported as numbers.
	AmountColumns []string        `json:"amount_columns"`
	Rows          [][]interface{} `json:"rows"`
}

// Report is everything one run produced. It is cached for later lookup and export.
type Report struct {
	Run         Run             `json:"run"`
	Warnings    []Warning       `json:"warnings"`
	Differences DiscrepancyView `json:"differences"`
}

// SummaryPayload is the row posted to the logging webhook for each compared date.
type SummaryPayload struct {
	Fecha              string   `json:"fecha"`
	TotalMetabase      *float64 `json:"total_metabase"`
	TotalGmoney        *float64 `json:"total_gmoney"`
	Diferencias        *float64 `json:"diferencias"`
	Estado             string   `json:"estado"`
	Usuario            string   `json:"usuario"`
	TimestampEjecucion string   `json:"timestamp_ejecucion"`
	RunID              string   `json:"run_id"`
}

// NewSummaryPayload builds the logging row for c. executedAt is rendered in its
// own location as "2006-01-02 15:04:05".
func NewSummaryPayload(runID, operator string, c Comparison, executedAt time.Time) SummaryPayload {
	return SummaryPayload{
		Fecha:              c.Date,
		TotalMetabase:      floatOrNil(c.TotalLedger.Decimal.InexactFloat64(), c.TotalLedger.Valid),
		TotalGmoney:        floatOrNil(c.TotalProvider.Decimal.InexactFloat64(), c.TotalProvider.Valid),
		Diferencias:        floatOrNil(c.Difference.Decimal.InexactFloat64(), c.Difference.Valid),
		Estado:             c.State,
		Usuario:            operator,
		TimestampEjecucion: executedAt.Format("2006-01-02 15:04:05"),
		RunID:              runID,
	}
}

func floatOrNil(f float64, valid bool) *float64 {
	if !valid {
		return nil
	}
	return &f
}

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

	"github.com/shopspring/decimal"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Comparison is one date of the aggregate comparison as operators read it.
// The JSON keys are the ones the logging endpoint stores.
type Comparison struct {
	Date          string              `json:"fecha"`
	TotalLedger   decimal.NullDecimal `json:"total_metabase"`
	TotalProvider decimal.NullDecimal `json:"total_gmoney"`
	Difference    decimal.NullDecimal `json:"diferencias"`
	State         string              `json:"estado"`
	Reconciled    bool                `json:"conciliado"`
}

// Run is the persisted summary of one reconciliation. Record sets are never stored.
type Run struct {
	ID               int64        `json:"-"`
	RunID            string       `json:"run_id"`
	Operator         string       `json:"operator"`
	Status           RunStatus    `json:"status"`
	LedgerFile       string       `json:"ledger_file"`
	ProviderFile     string       `json:"provider_file"`
	LedgerRows       int          `json:"ledger_rows"`
	ProviderRows     int          `json:"provider_rows"`
	ComparedDates    int          `json:"compared_dates"`
	DiscrepantDates  int          `json:"discrepant_dates"`
	DiscrepancyCount int          `json:"discrepancy_count"`
	Window           *Window      `json:"window,omitempty"`
	Error            string       `json:"error,omitempty"`
	Comparisons      []Comparison `json:"comparisons"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}

// Complete marks the run as finished at t.
func (r *Run) Complete(t time.Time) {
	r.Status = RunStatusCompleted
	r.CompletedAt = &t
}

// Fail marks the run as failed at t with err's message.
func (r *Run) Fail(t time.Time, err error) {
	r.Status = RunStatusFailed
	r.Error = err.Error()
	r.CompletedAt = &t
}

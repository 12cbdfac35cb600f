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
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListRunsQuery is the query string of GET /reconciliations.
type ListRunsQuery struct {
	Operator string `form:"operator"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

func (q *ListRunsQuery) ValidateListRuns() error {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return validation.ValidateStruct(q,
		validation.Field(&q.Limit, validation.Min(1), validation.Max(MaxLimit)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// ReconcileUpload names the multipart fields of POST /reconciliations.
type ReconcileUpload struct {
	Operator     string
	LedgerName   string
	ProviderName string
}

func (u *ReconcileUpload) ValidateUpload() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Operator, validation.Required.Error("the X-Operator header is required")),
		validation.Field(&u.LedgerName, validation.Required.Error("ledger_file is required")),
		validation.Field(&u.ProviderName, validation.Required.Error("provider_file is required")),
	)
}

// ExportFilename is the attachment name of a run's workbook.
func ExportFilename(runID string) string {
	return strconv.Quote("conciliacion_" + runID + ".xlsx")
}

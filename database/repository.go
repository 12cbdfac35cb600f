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

	"github.com/Dussand/conciliacion-Gmoney/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	runs
}

// runs stores the summary of every reconciliation.
type runs interface {
	RecordRun(ctx context.Context, run *model.Run) error
	// UpdateRun saves the outcome of a run recorded earlier.
	UpdateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, error)
	ListRunsByOperator(ctx context.Context, operator string, limit, offset int) ([]*model.Run, error)
}

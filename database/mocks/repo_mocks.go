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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Dussand/conciliacion-Gmoney/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) RecordRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) UpdateRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) GetRun(ctx context.Context, id string) (*model.Run, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*model.Run)
	return run, args.Error(1)
}

func (m *MockDataSource) ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	args := m.Called(ctx, limit, offset)
	runs, _ := args.Get(0).([]*model.Run)
	return runs, args.Error(1)
}

func (m *MockDataSource) ListRunsByOperator(ctx context.Context, operator string, limit, offset int) ([]*model.Run, error) {
	args := m.Called(ctx, operator, limit, offset)
	runs, _ := args.Get(0).([]*model.Run)
	return runs, args.Error(1)
}

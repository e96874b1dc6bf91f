// Package mocks provides test doubles for the run ledger.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/entity-xref/internal/model"
	store "github.com/sells-group/entity-xref/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, workspace, command
func (_m *MockStore) CreateRun(ctx context.Context, workspace string, command string) (*model.Run, error) {
	ret := _m.Called(ctx, workspace, command)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// FinishRun provides a mock function with given fields: ctx, runID, status, errMsg
func (_m *MockStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	ret := _m.Called(ctx, runID, status, errMsg)

	if len(ret) == 0 {
		panic("no return value specified for FinishRun")
	}
	return ret.Error(0)
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}
	return r0, ret.Error(1)
}

// CreateStage provides a mock function with given fields: ctx, runID, name
func (_m *MockStore) CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error) {
	ret := _m.Called(ctx, runID, name)

	if len(ret) == 0 {
		panic("no return value specified for CreateStage")
	}

	var r0 *model.RunStage
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.RunStage)
	}
	return r0, ret.Error(1)
}

// CompleteStage provides a mock function with given fields: ctx, stageID, status, counts, errMsg
func (_m *MockStore) CompleteStage(ctx context.Context, stageID string, status model.RunStatus, counts map[string]int64, errMsg string) error {
	ret := _m.Called(ctx, stageID, status, counts, errMsg)

	if len(ret) == 0 {
		panic("no return value specified for CompleteStage")
	}
	return ret.Error(0)
}

// RecordSkips provides a mock function with given fields: ctx, runID, skips
func (_m *MockStore) RecordSkips(ctx context.Context, runID string, skips []model.SkipEntry) (int64, error) {
	ret := _m.Called(ctx, runID, skips)

	if len(ret) == 0 {
		panic("no return value specified for RecordSkips")
	}

	var r0 int64
	if rf, ok := ret.Get(0).(func(context.Context, string, []model.SkipEntry) int64); ok {
		r0 = rf(ctx, runID, skips)
	} else {
		r0 = ret.Get(0).(int64)
	}
	return r0, ret.Error(1)
}

// UpsertDatasets provides a mock function with given fields: ctx, snaps
func (_m *MockStore) UpsertDatasets(ctx context.Context, snaps []store.DatasetSnapshot) error {
	ret := _m.Called(ctx, snaps)

	if len(ret) == 0 {
		panic("no return value specified for UpsertDatasets")
	}
	return ret.Error(0)
}

// ListDatasets provides a mock function with given fields: ctx
func (_m *MockStore) ListDatasets(ctx context.Context) ([]store.DatasetSnapshot, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for ListDatasets")
	}

	var r0 []store.DatasetSnapshot
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]store.DatasetSnapshot)
	}
	return r0, ret.Error(1)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ store.Store = (*MockStore)(nil)

package mocks

import (
	context "context"

	model "github.com/chaisthra/vibetrack/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// PartitionStore is a mock type for the PartitionStore type
type PartitionStore struct {
	mock.Mock
}

// Load provides a mock function with given fields: ctx, userID
func (_m *PartitionStore) Load(ctx context.Context, userID string) (model.Partition, error) {
	ret := _m.Called(ctx, userID)

	var r0 model.Partition
	if rf, ok := ret.Get(0).(func(context.Context, string) model.Partition); ok {
		r0 = rf(ctx, userID)
	} else {
		r0 = ret.Get(0).(model.Partition)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Save provides a mock function with given fields: ctx, partition
func (_m *PartitionStore) Save(ctx context.Context, partition model.Partition) error {
	ret := _m.Called(ctx, partition)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.Partition) error); ok {
		r0 = rf(ctx, partition)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewPartitionStore creates a new instance of PartitionStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewPartitionStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *PartitionStore {
	mock := &PartitionStore{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

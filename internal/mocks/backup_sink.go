package mocks

import (
	context "context"
	io "io"

	mock "github.com/stretchr/testify/mock"
)

// BackupSink is a mock type for the BackupSink type
type BackupSink struct {
	mock.Mock
}

// Exists provides a mock function with given fields: ctx, key
func (_m *BackupSink) Exists(ctx context.Context, key string) (bool, error) {
	ret := _m.Called(ctx, key)

	var r0 bool
	if rf, ok := ret.Get(0).(func(context.Context, string) bool); ok {
		r0 = rf(ctx, key)
	} else {
		r0 = ret.Get(0).(bool)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Upload provides a mock function with given fields: ctx, key, reader
func (_m *BackupSink) Upload(ctx context.Context, key string, reader io.Reader) error {
	ret := _m.Called(ctx, key, reader)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, io.Reader) error); ok {
		r0 = rf(ctx, key, reader)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewBackupSink creates a new instance of BackupSink. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewBackupSink(t interface {
	mock.TestingT
	Cleanup(func())
}) *BackupSink {
	mock := &BackupSink{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

package mocks

import (
	context "context"
	time "time"

	mock "github.com/stretchr/testify/mock"
)

// RevocationStore is a mock type for the RevocationStore type
type RevocationStore struct {
	mock.Mock
}

// Cleanup provides a mock function with given fields: ctx, now
func (_m *RevocationStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	ret := _m.Called(ctx, now)

	var r0 int
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) int); ok {
		r0 = rf(ctx, now)
	} else {
		r0 = ret.Get(0).(int)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, time.Time) error); ok {
		r1 = rf(ctx, now)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// IsRevoked provides a mock function with given fields: ctx, tokenID
func (_m *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ret := _m.Called(ctx, tokenID)

	var r0 bool
	if rf, ok := ret.Get(0).(func(context.Context, string) bool); ok {
		r0 = rf(ctx, tokenID)
	} else {
		r0 = ret.Get(0).(bool)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, tokenID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Revoke provides a mock function with given fields: ctx, tokenID, expiresAt
func (_m *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ret := _m.Called(ctx, tokenID, expiresAt)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) error); ok {
		r0 = rf(ctx, tokenID, expiresAt)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewRevocationStore creates a new instance of RevocationStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewRevocationStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *RevocationStore {
	mock := &RevocationStore{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

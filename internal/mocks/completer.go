package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
)

// Completer is a mock type for the Completer type
type Completer struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, prompt
func (_m *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	ret := _m.Called(ctx, prompt)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string) string); ok {
		r0 = rf(ctx, prompt)
	} else {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, prompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewCompleter creates a new instance of Completer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewCompleter(t interface {
	mock.TestingT
	Cleanup(func())
}) *Completer {
	mock := &Completer{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

package mocks

import (
	context "context"
	io "io"

	mock "github.com/stretchr/testify/mock"
)

// Transcriber is a mock type for the Transcriber type
type Transcriber struct {
	mock.Mock
}

// Transcribe provides a mock function with given fields: ctx, audio, filename
func (_m *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ret := _m.Called(ctx, audio, filename)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, io.Reader, string) string); ok {
		r0 = rf(ctx, audio, filename)
	} else {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, io.Reader, string) error); ok {
		r1 = rf(ctx, audio, filename)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewTranscriber creates a new instance of Transcriber. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewTranscriber(t interface {
	mock.TestingT
	Cleanup(func())
}) *Transcriber {
	mock := &Transcriber{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

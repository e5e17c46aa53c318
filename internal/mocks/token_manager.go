package mocks

import (
	model "github.com/chaisthra/vibetrack/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// TokenManager is a mock type for the TokenManager type
type TokenManager struct {
	mock.Mock
}

// Generate provides a mock function with given fields: userID
func (_m *TokenManager) Generate(userID string) (model.IssuedToken, error) {
	ret := _m.Called(userID)

	var r0 model.IssuedToken
	if rf, ok := ret.Get(0).(func(string) model.IssuedToken); ok {
		r0 = rf(userID)
	} else {
		r0 = ret.Get(0).(model.IssuedToken)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(string) error); ok {
		r1 = rf(userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Parse provides a mock function with given fields: token
func (_m *TokenManager) Parse(token string) (model.TokenClaims, error) {
	ret := _m.Called(token)

	var r0 model.TokenClaims
	if rf, ok := ret.Get(0).(func(string) model.TokenClaims); ok {
		r0 = rf(token)
	} else {
		r0 = ret.Get(0).(model.TokenClaims)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(string) error); ok {
		r1 = rf(token)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewTokenManager creates a new instance of TokenManager. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewTokenManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenManager {
	mock := &TokenManager{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

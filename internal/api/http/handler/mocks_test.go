package handler

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chaisthra/vibetrack/internal/model"
	"github.com/chaisthra/vibetrack/internal/service"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// credentialServiceMock is a mock type for CredentialService.
type credentialServiceMock struct {
	mock.Mock
}

func newCredentialServiceMock(t cleanupT) *credentialServiceMock {
	m := &credentialServiceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *credentialServiceMock) Register(ctx context.Context, reg service.Registration) (string, error) {
	ret := _m.Called(ctx, reg)
	return ret.String(0), ret.Error(1)
}

func (_m *credentialServiceMock) VerifyLogin(ctx context.Context, username, password string) (model.Account, error) {
	ret := _m.Called(ctx, username, password)
	return ret.Get(0).(model.Account), ret.Error(1)
}

func (_m *credentialServiceMock) GetProfile(ctx context.Context, userID string) (model.Account, error) {
	ret := _m.Called(ctx, userID)
	return ret.Get(0).(model.Account), ret.Error(1)
}

func (_m *credentialServiceMock) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (model.Account, error) {
	ret := _m.Called(ctx, userID, update)
	return ret.Get(0).(model.Account), ret.Error(1)
}

func (_m *credentialServiceMock) ChangePassword(ctx context.Context, userID, current, next string) error {
	ret := _m.Called(ctx, userID, current, next)
	return ret.Error(0)
}

// tokenServiceMock is a mock type for TokenService.
type tokenServiceMock struct {
	mock.Mock
}

func newTokenServiceMock(t cleanupT) *tokenServiceMock {
	m := &tokenServiceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *tokenServiceMock) Issue(ctx context.Context, userID string) (model.IssuedToken, error) {
	ret := _m.Called(ctx, userID)
	return ret.Get(0).(model.IssuedToken), ret.Error(1)
}

func (_m *tokenServiceMock) Revoke(ctx context.Context, token string) error {
	ret := _m.Called(ctx, token)
	return ret.Error(0)
}

// activityLoggerMock is a mock type for ActivityLogger.
type activityLoggerMock struct {
	mock.Mock
}

func newActivityLoggerMock(t cleanupT) *activityLoggerMock {
	m := &activityLoggerMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *activityLoggerMock) LogText(ctx context.Context, id model.Identity, in service.NewActivity) (service.LogResult, error) {
	ret := _m.Called(ctx, id, in)
	return ret.Get(0).(service.LogResult), ret.Error(1)
}

func (_m *activityLoggerMock) LogVoice(ctx context.Context, id model.Identity, audio io.Reader, filename, fallbackText string, ts time.Time) (service.LogResult, error) {
	ret := _m.Called(ctx, id, audio, filename, fallbackText, ts)
	return ret.Get(0).(service.LogResult), ret.Error(1)
}

func (_m *activityLoggerMock) Query(ctx context.Context, id model.Identity, q service.LogQuery) (service.QueryResult, error) {
	ret := _m.Called(ctx, id, q)
	return ret.Get(0).(service.QueryResult), ret.Error(1)
}

// partitionServiceMock is a mock type for PartitionService.
type partitionServiceMock struct {
	mock.Mock
}

func newPartitionServiceMock(t cleanupT) *partitionServiceMock {
	m := &partitionServiceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *partitionServiceMock) RemoveActivity(ctx context.Context, id model.Identity, activityID uuid.UUID) error {
	ret := _m.Called(ctx, id, activityID)
	return ret.Error(0)
}

func (_m *partitionServiceMock) ListActivities(ctx context.Context, id model.Identity, filter model.ActivityFilter) ([]model.Activity, error) {
	ret := _m.Called(ctx, id, filter)
	out, _ := ret.Get(0).([]model.Activity)
	return out, ret.Error(1)
}

func (_m *partitionServiceMock) CategorySummary(ctx context.Context, id model.Identity) (map[string]int, error) {
	ret := _m.Called(ctx, id)
	out, _ := ret.Get(0).(map[string]int)
	return out, ret.Error(1)
}

func (_m *partitionServiceMock) Categories(ctx context.Context, id model.Identity) (model.CategoryOverview, error) {
	ret := _m.Called(ctx, id)
	return ret.Get(0).(model.CategoryOverview), ret.Error(1)
}

func (_m *partitionServiceMock) Conversations(ctx context.Context, id model.Identity, limit int) ([]model.Conversation, error) {
	ret := _m.Called(ctx, id, limit)
	out, _ := ret.Get(0).([]model.Conversation)
	return out, ret.Error(1)
}

func (_m *partitionServiceMock) AppendConversation(ctx context.Context, id model.Identity, c model.Conversation) (model.Conversation, error) {
	ret := _m.Called(ctx, id, c)
	return ret.Get(0).(model.Conversation), ret.Error(1)
}

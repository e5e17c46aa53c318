package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/mocks"
	"github.com/chaisthra/vibetrack/internal/model"
	"github.com/chaisthra/vibetrack/internal/testutil"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestCredentials(t *testing.T, users model.UserStore) *Credentials {
	t.Helper()
	c, err := NewCredentials(users, clock.Fake(testNow), testutil.MakeNoopLogger(), bcrypt.MinCost)
	require.NoError(t, err)
	return c
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestCredentials_Register(t *testing.T) {
	tests := []struct {
		name      string
		reg       Registration
		mockSetup func(*mocks.UserStore)
		want      string
		wantErr   error
	}{
		{
			name: "success",
			reg:  Registration{Username: " Alice ", Password: "P@ssw0rd1"},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
					return u.Username == "alice" &&
						u.Status == model.UserStatusActive &&
						u.Profile.DisplayName == "alice" &&
						u.Profile.Preferences == model.DefaultPreferences() &&
						bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("P@ssw0rd1")) == nil &&
						u.CreatedAt.Equal(testNow)
				})).Return(nil).Once()
			},
			want: "alice",
		},
		{
			name: "with profile",
			reg:  Registration{Username: "bob", Password: "hunter22", DisplayName: "Bob B", Email: "bob@example.com"},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
					return u.Profile.DisplayName == "Bob B" && u.Profile.Email == "bob@example.com"
				})).Return(nil).Once()
			},
			want: "bob",
		},
		{
			name:    "invalid username",
			reg:     Registration{Username: "a!", Password: "P@ssw0rd1"},
			wantErr: model.ErrValidation,
		},
		{
			name:    "short password",
			reg:     Registration{Username: "alice", Password: "a1"},
			wantErr: model.ErrWeakCredential,
		},
		{
			name:    "password without digit",
			reg:     Registration{Username: "alice", Password: "password"},
			wantErr: model.ErrWeakCredential,
		},
		{
			name:    "password too long",
			reg:     Registration{Username: "alice", Password: string(make([]byte, 73)) + "a1"},
			wantErr: model.ErrWeakCredential,
		},
		{
			name:    "bad email",
			reg:     Registration{Username: "alice", Password: "P@ssw0rd1", Email: "not-an-email"},
			wantErr: model.ErrValidation,
		},
		{
			name: "duplicate",
			reg:  Registration{Username: "alice", Password: "P@ssw0rd1"},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Create", mock.Anything, mock.Anything).Return(model.ErrDuplicateUser).Once()
			},
			wantErr: model.ErrDuplicateUser,
		},
		{
			name: "storage failure",
			reg:  Registration{Username: "alice", Password: "P@ssw0rd1"},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Create", mock.Anything, mock.Anything).Return(model.ErrStorage).Once()
			},
			wantErr: model.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := mocks.NewUserStore(t)
			if tt.mockSetup != nil {
				tt.mockSetup(users)
			}
			c := newTestCredentials(t, users)

			got, err := c.Register(context.Background(), tt.reg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredentials_VerifyLogin(t *testing.T) {
	active := model.User{
		Username:     "alice",
		PasswordHash: hashFor(t, "P@ssw0rd1"),
		Status:       model.UserStatusActive,
		Profile:      model.Profile{DisplayName: "alice", Preferences: model.DefaultPreferences()},
	}
	disabled := active
	disabled.Status = model.UserStatusDisabled

	tests := []struct {
		name      string
		username  string
		password  string
		mockSetup func(*mocks.UserStore)
		wantErr   error
	}{
		{
			name:     "success stamps last login",
			username: "ALICE",
			password: "P@ssw0rd1",
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(active, nil).Twice()
				users.On("Update", mock.Anything, mock.MatchedBy(func(u model.User) bool {
					return u.LastLoginAt != nil && u.LastLoginAt.Equal(testNow)
				})).Return(nil).Once()
			},
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "wrong",
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(active, nil).Once()
			},
			wantErr: model.ErrInvalidCredential,
		},
		{
			name:     "unknown user",
			username: "nobody",
			password: "P@ssw0rd1",
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "nobody").Return(model.User{}, model.ErrNotFound).Once()
			},
			wantErr: model.ErrInvalidCredential,
		},
		{
			name:     "malformed username",
			username: "??",
			password: "P@ssw0rd1",
			wantErr:  model.ErrInvalidCredential,
		},
		{
			name:     "disabled user",
			username: "alice",
			password: "P@ssw0rd1",
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(disabled, nil).Once()
			},
			wantErr: model.ErrInvalidCredential,
		},
		{
			name:     "storage failure is not masked",
			username: "alice",
			password: "P@ssw0rd1",
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(model.User{}, model.ErrStorage).Once()
			},
			wantErr: model.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := mocks.NewUserStore(t)
			if tt.mockSetup != nil {
				tt.mockSetup(users)
			}
			c := newTestCredentials(t, users)

			account, err := c.VerifyLogin(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", account.Username)
			require.NotNil(t, account.LastLoginAt)
		})
	}
}

func TestCredentials_UpdateProfile(t *testing.T) {
	stored := model.User{
		Username: "alice",
		Status:   model.UserStatusActive,
		Profile:  model.Profile{DisplayName: "alice", Email: "a@example.com", Preferences: model.DefaultPreferences()},
	}
	name := "Alice A"
	blank := "  "
	badEmail := "nope"
	light, neon := "light", "neon"
	off := false
	themeOnly := model.PreferencesUpdate{Theme: &light}
	notificationsOnly := model.PreferencesUpdate{NotificationsEnabled: &off}
	badTheme := model.PreferencesUpdate{Theme: &neon}

	tests := []struct {
		name      string
		update    model.ProfileUpdate
		mockSetup func(*mocks.UserStore)
		check     func(t *testing.T, a model.Account)
		wantErr   error
	}{
		{
			name:   "display name only",
			update: model.ProfileUpdate{DisplayName: &name},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
				users.On("Update", mock.Anything, mock.MatchedBy(func(u model.User) bool {
					return u.Profile.DisplayName == name && u.Profile.Email == "a@example.com"
				})).Return(nil).Once()
			},
			check: func(t *testing.T, a model.Account) {
				assert.Equal(t, name, a.Profile.DisplayName)
				assert.Equal(t, "a@example.com", a.Profile.Email)
			},
		},
		{
			name:   "theme only keeps notifications",
			update: model.ProfileUpdate{Preferences: &themeOnly},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
				users.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
			},
			check: func(t *testing.T, a model.Account) {
				assert.Equal(t, model.Preferences{Theme: "light", NotificationsEnabled: true}, a.Profile.Preferences)
			},
		},
		{
			name:   "notifications only keeps theme",
			update: model.ProfileUpdate{Preferences: &notificationsOnly},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
				users.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
			},
			check: func(t *testing.T, a model.Account) {
				assert.Equal(t, model.Preferences{Theme: "dark", NotificationsEnabled: false}, a.Profile.Preferences)
			},
		},
		{
			name:   "blank display name",
			update: model.ProfileUpdate{DisplayName: &blank},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
			},
			wantErr: model.ErrValidation,
		},
		{
			name:   "invalid email",
			update: model.ProfileUpdate{Email: &badEmail},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
			},
			wantErr: model.ErrValidation,
		},
		{
			name:   "invalid theme",
			update: model.ProfileUpdate{Preferences: &badTheme},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
			},
			wantErr: model.ErrValidation,
		},
		{
			name:   "missing user",
			update: model.ProfileUpdate{DisplayName: &name},
			mockSetup: func(users *mocks.UserStore) {
				users.On("Get", mock.Anything, "alice").Return(model.User{}, model.ErrNotFound).Once()
			},
			wantErr: model.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := mocks.NewUserStore(t)
			tt.mockSetup(users)
			c := newTestCredentials(t, users)

			got, err := c.UpdateProfile(context.Background(), "alice", tt.update)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

// memoryUsers is a UserStore whose Get yields, so unsynchronised
// read-modify-write cycles interleave.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memoryUsers) Get(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	u, ok := m.users[username]
	m.mu.Unlock()
	runtime.Gosched()
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) Create(_ context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return model.ErrDuplicateUser
	}
	m.users[user.Username] = user
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Username] = user
	return nil
}

func TestCredentials_UpdateProfile_ConcurrentPartialUpdates(t *testing.T) {
	for i := 0; i < 20; i++ {
		users := &memoryUsers{users: map[string]model.User{
			"alice": {
				Username: "alice",
				Status:   model.UserStatusActive,
				Profile:  model.Profile{DisplayName: "alice", Preferences: model.DefaultPreferences()},
			},
		}}
		c := newTestCredentials(t, users)

		light := "light"
		off := false
		name := "Alice A"
		updates := []model.ProfileUpdate{
			{Preferences: &model.PreferencesUpdate{Theme: &light}},
			{Preferences: &model.PreferencesUpdate{NotificationsEnabled: &off}},
			{DisplayName: &name},
		}

		var wg sync.WaitGroup
		start := make(chan struct{})
		for _, u := range updates {
			wg.Add(1)
			go func(u model.ProfileUpdate) {
				defer wg.Done()
				<-start
				_, err := c.UpdateProfile(context.Background(), "alice", u)
				assert.NoError(t, err)
			}(u)
		}
		close(start)
		wg.Wait()

		got, err := c.GetProfile(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, model.Preferences{Theme: "light", NotificationsEnabled: false}, got.Profile.Preferences)
		assert.Equal(t, name, got.Profile.DisplayName)
	}
}

func TestCredentials_ChangePassword(t *testing.T) {
	stored := model.User{Username: "alice", PasswordHash: hashFor(t, "P@ssw0rd1"), Status: model.UserStatusActive}

	t.Run("success", func(t *testing.T) {
		users := mocks.NewUserStore(t)
		users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
		users.On("Update", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("N3wPassword")) == nil
		})).Return(nil).Once()

		c := newTestCredentials(t, users)
		require.NoError(t, c.ChangePassword(context.Background(), "alice", "P@ssw0rd1", "N3wPassword"))
	})

	t.Run("wrong current password", func(t *testing.T) {
		users := mocks.NewUserStore(t)
		users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()

		c := newTestCredentials(t, users)
		err := c.ChangePassword(context.Background(), "alice", "nope", "N3wPassword")
		assert.ErrorIs(t, err, model.ErrInvalidCredential)
	})

	t.Run("weak new password", func(t *testing.T) {
		users := mocks.NewUserStore(t)

		c := newTestCredentials(t, users)
		err := c.ChangePassword(context.Background(), "alice", "P@ssw0rd1", "short")
		assert.ErrorIs(t, err, model.ErrWeakCredential)
	})

	t.Run("update failure", func(t *testing.T) {
		users := mocks.NewUserStore(t)
		users.On("Get", mock.Anything, "alice").Return(stored, nil).Once()
		users.On("Update", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		c := newTestCredentials(t, users)
		err := c.ChangePassword(context.Background(), "alice", "P@ssw0rd1", "N3wPassword")
		assert.Error(t, err)
	})
}

func TestCredentials_GetProfile(t *testing.T) {
	users := mocks.NewUserStore(t)
	users.On("Get", mock.Anything, "alice").Return(model.User{Username: "alice", PasswordHash: "secret-hash"}, nil).Once()
	users.On("Get", mock.Anything, "ghost").Return(model.User{}, model.ErrNotFound).Once()

	c := newTestCredentials(t, users)

	account, err := c.GetProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)

	_, err = c.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
